package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"shipnotify/internal/credential"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an access token in the OS keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := tokenFlag
		if token == "" {
			fmt.Print("Access token: ")
			scanner := bufio.NewScanner(os.Stdin)
			scanner.Scan()
			token = strings.TrimSpace(scanner.Text())
		}
		if token == "" {
			return errors.New("no token given")
		}

		if err := credential.SaveToken(token); err != nil {
			return err
		}
		fmt.Println("Logged in.")
		return nil
	},
}
