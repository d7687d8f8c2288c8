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

// Default builds the production adapter registry in priority order.
// Generic must stay last: it matches every URL and has no opinion about
// any stage, so anything earlier in the list that wants to claim a host
// must be registered ahead of it.
func Default() *Registry {
	return NewRegistry(
		WeChat(),
		Twitter(),
		Feishu(),
		Reddit(),
		Zhihu(),
		Yuque(),
		Notion(),
		Juejin(),
		CSDN(),
		ThirtySixKr(),
		Toutiao(),
		NetEase(),
		Weibo(),
		Generic(),
	)
}
