package main

import (
	"fmt"

	"shipnotify/internal/credential"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credential.DeleteToken(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}
