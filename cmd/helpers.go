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
	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	rollbackcfg "github.com/rancher/elemental-rollback/pkg/config"
	"github.com/rancher/elemental-rollback/pkg/rollback"
	"github.com/rancher/elemental-rollback/pkg/types"
)

// buildCore resolves the TPM backend named by the --device/--simulate
// persistent flags and returns a ready rollback.Core.
func buildCore() (*rollback.Core, error) {
	log := types.NewLogger()
	if viper.GetBool("debug") {
		log.SetLevel(logrus.DebugLevel)
	}

	opts := []rollbackcfg.Option{
		rollbackcfg.WithLogger(log),
		rollbackcfg.WithDevice(viper.GetString("device")),
	}
	if viper.GetBool("simulate") {
		opts = append(opts, rollbackcfg.WithSimulator())
	}

	cfg, err := rollbackcfg.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return cfg.NewCore()
}
