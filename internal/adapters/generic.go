// Copyright 2025 The urlmd Authors.
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

package adapters

import "net/url"

// Generic is the terminal fallback adapter: it matches every URL and
// contributes no special behavior, letting the orchestrator fall
// through to the plain static/browser decision in C8.
func Generic() Adapter {
	return Adapter{
		Name:  "generic",
		Match: func(u *url.URL) bool { return true },
	}
}
