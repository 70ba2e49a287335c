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

package rollback

// checkDeveloperModeTransition clears the TPM whenever the developer-mode
// flag observed this boot differs from the one stored from the previous
// boot. Crossing that boundary invalidates anything sealed to the old
// state, so the clear must happen before the new flag is persisted.
func (c *Core) checkDeveloperModeTransition(currentDeveloper bool) error {
	pastBuf, err := c.tpm.Read(DeveloperModeIndex, counterSize)
	if err != nil {
		return err
	}
	pastDeveloper := decodeBool(pastBuf)

	if pastDeveloper == currentDeveloper {
		return nil
	}

	c.log.Infof("developer mode transition detected (%t -> %t), clearing TPM",
		pastDeveloper, currentDeveloper)
	if err := c.tpmClearAndReenable(); err != nil {
		return err
	}
	return c.safeWrite(DeveloperModeIndex, encodeBool(currentDeveloper))
}
