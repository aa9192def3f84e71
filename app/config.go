package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CNES/DOI-server-sub001/internal/config"
)

func init() { //nolint: gochecknoinits
	configCmd.Flags().BoolVar(&dumpJSON, "json", false, "Dump as JSON instead of TOML")
	configCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(configCmd)
}

var (
	dumpJSON bool

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Dump the effective configuration after defaults and decryption",
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := config.ReadConfig(configPath)
			if err != nil {
				return err
			}

			dump := config.DumpConfig
			if dumpJSON {
				dump = config.DumpConfigJSON
			}

			out, err := dump(c)
			if err != nil {
				return err
			}

			fmt.Println(out)

			return nil
		},
	}

	encryptCmd = &cobra.Command{
		Use:   "encrypt <passphrase> <plaintext>",
		Short: "Encrypt a configuration value for use with the enc: prefix",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			out, err := config.EncryptValue(args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Println(out)

			return nil
		},
	}
)
