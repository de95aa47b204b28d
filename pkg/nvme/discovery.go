// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nvme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	sysClassNVMe = "/sys/class/nvme"
	devRoot      = "/dev"
)

// Namespace identifies one namespace under a controller.
type Namespace struct {
	Name string
	ID   uint32
}

// Controller is one enumerated NVMe controller: its character device path
// plus the identity attributes sysfs exposes without privileges. Identity
// fields are empty when only devfs enumeration was possible.
type Controller struct {
	Name       string
	DevPath    string
	Model      string
	Serial     string
	Firmware   string
	Namespaces []Namespace
}

// DiscoverControllers enumerates NVMe controllers matching the device glob
// pattern. Sysfs is preferred because it carries identity attributes and
// namespace topology; a /dev scan is the fallback for constrained
// environments (containers with only device nodes mapped in).
// Enumeration is purely informational and mutates nothing.
func DiscoverControllers(pattern string) ([]Controller, error) {
	// Validate the pattern up front so a bad flag fails discovery loudly
	// instead of silently matching nothing.
	if _, err := filepath.Match(pattern, "/dev/nvme0"); err != nil {
		return nil, WrapError(ErrCodeDiscovery, fmt.Sprintf("invalid device pattern %q", pattern), err)
	}

	controllers, err := discoverFromSysfs(pattern)
	if err != nil {
		return nil, err
	}
	if len(controllers) == 0 {
		controllers, err = discoverFromDevfs(pattern)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(controllers, func(i, j int) bool {
		return controllers[i].Name < controllers[j].Name
	})
	return controllers, nil
}

func discoverFromSysfs(pattern string) ([]Controller, error) {
	entries, err := os.ReadDir(sysClassNVMe)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, WrapError(ErrCodeDiscovery, fmt.Sprintf("cannot read %s", sysClassNVMe), err)
	}

	var controllers []Controller
	for _, entry := range entries {
		name := entry.Name()
		if !isControllerName(name) {
			continue
		}

		devPath := filepath.Join(devRoot, name)
		if ok, _ := filepath.Match(pattern, devPath); !ok {
			continue
		}

		sysPath := filepath.Join(sysClassNVMe, name)
		namespaces := discoverNamespaces(name, sysPath)
		sort.Slice(namespaces, func(i, j int) bool {
			return namespaces[i].Name < namespaces[j].Name
		})

		controllers = append(controllers, Controller{
			Name:       name,
			DevPath:    devPath,
			Model:      readAttr(filepath.Join(sysPath, "model")),
			Serial:     readAttr(filepath.Join(sysPath, "serial")),
			Firmware:   readAttr(filepath.Join(sysPath, "firmware_rev")),
			Namespaces: namespaces,
		})
	}

	return controllers, nil
}

func discoverFromDevfs(pattern string) ([]Controller, error) {
	paths, err := filepath.Glob(filepath.Join(devRoot, "nvme[0-9]*"))
	if err != nil {
		return nil, WrapError(ErrCodeDiscovery, "cannot glob device nodes", err)
	}

	var controllers []Controller
	for _, path := range paths {
		name := filepath.Base(path)
		if !isControllerName(name) {
			continue
		}
		if ok, _ := filepath.Match(pattern, path); !ok {
			continue
		}
		controllers = append(controllers, Controller{
			Name:    name,
			DevPath: path,
		})
	}

	return controllers, nil
}

func discoverNamespaces(controllerName, controllerSysPath string) []Namespace {
	entries, err := os.ReadDir(controllerSysPath)
	if err != nil {
		return nil
	}

	var namespaces []Namespace
	for _, entry := range entries {
		name := entry.Name()
		nsid, ok := parseNamespaceName(controllerName, name)
		if !ok {
			continue
		}
		namespaces = append(namespaces, Namespace{Name: name, ID: nsid})
	}

	return namespaces
}

// parseNamespaceName extracts the namespace ID from names like "nvme0n1".
// Partition entries ("nvme0n1p1") and foreign controllers are rejected.
func parseNamespaceName(controllerName, namespaceName string) (uint32, bool) {
	suffix, ok := strings.CutPrefix(namespaceName, controllerName+"n")
	if !ok || suffix == "" {
		return 0, false
	}

	digits := suffix
	for i, ch := range suffix {
		if ch < '0' || ch > '9' {
			digits = suffix[:i]
			break
		}
	}
	if digits != suffix || digits == "" {
		return 0, false
	}

	nsid, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(nsid), true
}

// isControllerName reports whether value names a controller node ("nvme0")
// as opposed to a namespace or partition node.
func isControllerName(value string) bool {
	suffix, ok := strings.CutPrefix(value, "nvme")
	if !ok || suffix == "" {
		return false
	}
	for _, ch := range suffix {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

func readAttr(path string) string {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(contents))
}
