/*
Copyright © 2021 - 2026 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewFirmwareSetupCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "firmware-setup",
		Args:  cobra.ExactArgs(0),
		Short: "Run the firmware boot-time TPM setup sequence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			developer, _ := cmd.Flags().GetBool("developer-mode")
			core, err := buildCore()
			if err != nil {
				return err
			}
			_, err = core.RollbackFirmwareSetup(developer)
			return err
		},
	}
	c.Flags().Bool("developer-mode", false, "This boot is in developer mode")
	root.AddCommand(c)
	return c
}

func NewFirmwareReadCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "firmware-read",
		Args:  cobra.ExactArgs(0),
		Short: "Print the current firmware key version and version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			keyVersion, version, err := core.RollbackFirmwareRead()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key_version=%d version=%d\n", keyVersion, version)
			return nil
		},
	}
	root.AddCommand(c)
	return c
}

func NewFirmwareWriteCmd(root *cobra.Command) *cobra.Command {
	var keyVersion, version uint16
	c := &cobra.Command{
		Use:   "firmware-write",
		Args:  cobra.ExactArgs(0),
		Short: "Advance the firmware anti-rollback counter",
		RunE: func(_ *cobra.Command, _ []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			return core.RollbackFirmwareWrite(keyVersion, version)
		},
	}
	c.Flags().Uint16Var(&keyVersion, "key-version", 0, "Firmware signing key version")
	c.Flags().Uint16Var(&version, "version", 0, "Firmware version")
	root.AddCommand(c)
	return c
}

func NewFirmwareLockCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "firmware-lock",
		Args:  cobra.ExactArgs(0),
		Short: "Close the firmware policy window for the rest of this boot",
		RunE: func(_ *cobra.Command, _ []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			return core.RollbackFirmwareLock()
		},
	}
	root.AddCommand(c)
	return c
}

var (
	_ = NewFirmwareSetupCmd(rootCmd)
	_ = NewFirmwareReadCmd(rootCmd)
	_ = NewFirmwareWriteCmd(rootCmd)
	_ = NewFirmwareLockCmd(rootCmd)
)
