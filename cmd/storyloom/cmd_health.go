package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check configuration and required services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			// Check config
			if err := cfg.Validate(); err != nil {
				fmt.Printf("Config: FAIL (%v)\n", err)
				allOK = false
			} else {
				fmt.Println("Config: OK")
			}

			// Check local store
			st, err := newStore(logger)
			if err != nil {
				fmt.Printf("Store: FAIL (%v)\n", err)
				allOK = false
			} else {
				defer func() { _ = st.Close() }()
				if _, err := st.Stats(ctx); err != nil {
					fmt.Printf("Store: FAIL (%v)\n", err)
					allOK = false
				} else {
					fmt.Println("Store: OK")
				}
			}

			// Check Claude API key
			if cfg.Claude.APIKey == "" {
				fmt.Println("Claude API: FAIL (no API key configured)")
				allOK = false
			} else {
				fmt.Println("Claude API: OK")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
