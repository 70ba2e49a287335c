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

	"github.com/rancher/elemental-rollback/pkg/rollback"
)

// bootContext rebuilds the BootContext a kernel-* subcommand needs from the
// --recovery flag. Every invocation of this binary is a fresh process, so
// nothing from RollbackKernelRecovery's in-memory return value survives
// between the recovery-setup call and a later kernel-read/write/lock call;
// both must agree on --recovery for a given boot.
func bootContext(cmd *cobra.Command) rollback.BootContext {
	recovery, _ := cmd.Flags().GetBool("recovery")
	return rollback.BootContext{RecoveryMode: recovery}
}

func addRecoveryFlag(c *cobra.Command) {
	c.Flags().Bool("recovery", false, "This boot is a recovery boot")
}

func NewKernelRecoveryCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "kernel-recovery",
		Args:  cobra.ExactArgs(0),
		Short: "Run the kernel boot-time TPM setup sequence for a recovery boot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			developer, _ := cmd.Flags().GetBool("developer-mode")
			core, err := buildCore()
			if err != nil {
				return err
			}
			_, err = core.RollbackKernelRecovery(developer)
			return err
		},
	}
	c.Flags().Bool("developer-mode", false, "This boot is in developer mode")
	root.AddCommand(c)
	return c
}

func NewKernelReadCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "kernel-read",
		Args:  cobra.ExactArgs(0),
		Short: "Print the current kernel key version and version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			keyVersion, version, err := core.RollbackKernelRead(bootContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key_version=%d version=%d\n", keyVersion, version)
			return nil
		},
	}
	addRecoveryFlag(c)
	root.AddCommand(c)
	return c
}

func NewKernelWriteCmd(root *cobra.Command) *cobra.Command {
	var keyVersion, version uint16
	c := &cobra.Command{
		Use:   "kernel-write",
		Args:  cobra.ExactArgs(0),
		Short: "Advance the kernel anti-rollback counter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			return core.RollbackKernelWrite(bootContext(cmd), keyVersion, version)
		},
	}
	c.Flags().Uint16Var(&keyVersion, "key-version", 0, "Kernel signing key version")
	c.Flags().Uint16Var(&version, "version", 0, "Kernel version")
	addRecoveryFlag(c)
	root.AddCommand(c)
	return c
}

func NewKernelLockCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   "kernel-lock",
		Args:  cobra.ExactArgs(0),
		Short: "Turn off physical presence for the rest of this boot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			return core.RollbackKernelLock(bootContext(cmd))
		},
	}
	addRecoveryFlag(c)
	root.AddCommand(c)
	return c
}

var (
	_ = NewKernelRecoveryCmd(rootCmd)
	_ = NewKernelReadCmd(rootCmd)
	_ = NewKernelWriteCmd(rootCmd)
	_ = NewKernelLockCmd(rootCmd)
)
