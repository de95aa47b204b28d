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

// Package nvme talks to NVMe controllers through the kernel's admin command
// passthru ioctl. It covers the three concerns below and nothing else:
//
//   - discovery: enumerating controllers and namespaces from sysfs, with a
//     /dev glob fallback for constrained environments
//   - transport: issuing identify and get-log-page admin commands against an
//     open controller device node
//   - decoding: turning raw log page and identify buffers into typed
//     structures (SMART / health, error information, self-test, identity)
//
// All failures are classified with an ErrorCode so callers can distinguish
// permission problems, removed devices, protocol status errors and timeouts
// without string matching.
//
// The admin ioctl blocks in the kernel with no cancellation support. Callers
// that need bounded waits must isolate submissions in their own goroutines;
// see the collector package.
package nvme
