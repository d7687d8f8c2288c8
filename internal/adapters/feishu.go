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

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// feishuHarvestTimeout bounds the virtual-scroll capture loop;
// gives Feishu-style documents a 55s harvest allowance, after which the
// loop stops, because the doc can scroll forever if the page never
// settles.
const feishuHarvestTimeout = 55 * time.Second

// feishuScrollStep is evaluated in-page on every iteration of the
// harvest loop to advance the virtual scroller and report whether new
// content appeared.
const feishuScrollStep = `(function(){
  var before = document.body.scrollHeight;
  window.scrollTo(0, document.body.scrollHeight);
  return {height: document.body.scrollHeight, grew: document.body.scrollHeight > before};
})()`

// Feishu owns a virtual-scroll harvest loop: Feishu docs render only the
// viewport-visible slice of a long document and swap content in as the
// user scrolls, so a single Content() call after navigation sees a
// fraction of the document. ConfigurePage drives the scroll-and-wait
// loop itself (rather than delegating to Extract) so it can bail out
// early once the page stops growing.
func Feishu() Adapter {
	return Adapter{
		Name: "feishu",
		Match: func(u *url.URL) bool {
			h := strings.ToLower(u.Hostname())
			return strings.HasSuffix(h, ".feishu.cn") || h == "feishu.cn"
		},
		AlwaysBrowser: true,
		ConfigurePage: feishuConfigurePage,
		Extract:       feishuExtract,
	}
}

func feishuConfigurePage(ctx context.Context, page Page, state PageState) error {
	deadline := time.Now().Add(feishuHarvestTimeout)
	var lastHeight float64
	stableRounds := 0

	for time.Now().Before(deadline) {
		result, err := page.Evaluate(ctx, feishuScrollStep)
		if err != nil {
			return err
		}
		height, grew := parseScrollResult(result)
		if !grew && height == lastHeight {
			stableRounds++
			if stableRounds >= 3 {
				break
			}
		} else {
			stableRounds = 0
		}
		lastHeight = height

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(400 * time.Millisecond):
		}
	}

	images, err := page.Evaluate(ctx, `Array.from(document.images).map(function(i){return i.src})`)
	if err == nil {
		state["feishu_images"] = images
	}
	return nil
}

func feishuExtract(ctx context.Context, page Page, state PageState) (*ExtractResult, error) {
	html, err := page.Content(ctx)
	if err != nil {
		return nil, err
	}
	var images []string
	if raw, ok := state["feishu_images"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				images = append(images, s)
			}
		}
	}
	return &ExtractResult{HTML: html, Images: images}, nil
}

// parseScrollResult extracts (height, grew) from the loosely-typed
// Evaluate return value, which arrives as map[string]any once decoded
// from the browser's JSON-serialized result.
func parseScrollResult(v any) (float64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	height, _ := m["height"].(float64)
	grew, _ := m["grew"].(bool)
	return height, grew
}
