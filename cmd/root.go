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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rancher/elemental-rollback/pkg/rollbackerr"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollbackctl",
		Short: "Anti-rollback TPM counter control",
	}
	cmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	cmd.PersistentFlags().String("device", "", "TPM character device path (empty: platform default)")
	cmd.PersistentFlags().Bool("simulate", false, "Use the in-memory TPM simulator instead of hardware")
	_ = viper.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("device", cmd.PersistentFlags().Lookup("device"))
	_ = viper.BindPFlag("simulate", cmd.PersistentFlags().Lookup("simulate"))
	return cmd
}

var rootCmd = NewRootCmd()

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main and maps any rollbackerr.RollbackError to its
// fixed exit code, so a caller scripting around this binary (a bootloader
// stage, a systemd unit) can branch on the process exit status alone.
func Execute() {
	err := rootCmd.Execute()
	os.Exit(rollbackerr.ExitCode(err))
}
