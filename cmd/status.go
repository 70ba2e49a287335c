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

// NewStatusCmd reports the NV spaces this module owns (all but
// KERNEL_VERSIONS_BACKUP) without touching TPM state, aggregating every problem found instead of stopping at the
// first. It exists for field diagnostics; it is not part of the boot
// sequence and is never invoked by firmware or bootloader code.
func NewStatusCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Args:  cobra.ExactArgs(0),
		Short: "Show the current state of every anti-rollback NV space",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			st, err := core.Inspect()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "initialized=%t\n", st.Initialized)
			if st.Initialized {
				fmt.Fprintf(out, "firmware_key_version=%d firmware_version=%d\n", st.FirmwareKeyVersion, st.FirmwareVersion)
				fmt.Fprintf(out, "kernel_key_version=%d kernel_version=%d kernel_uid_valid=%t\n",
					st.KernelKeyVersion, st.KernelVersion, st.KernelUIDValid)
				fmt.Fprintf(out, "kernel_must_use_backup=%t developer_mode=%t\n", st.KernelMustUseBackup, st.DeveloperMode)
			}
			return err
		},
	}
	root.AddCommand(c)
	return c
}

var _ = NewStatusCmd(rootCmd)
