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
	"net/url"
	"regexp"
	"strings"
)

// hostMatch builds a Match func that accepts an exact hostname or any of
// its subdomains, case-insensitively.
func hostMatch(hosts ...string) func(*url.URL) bool {
	set := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(h)] = true
	}
	return func(u *url.URL) bool {
		h := strings.ToLower(u.Hostname())
		if set[h] {
			return true
		}
		for host := range set {
			if strings.HasSuffix(h, "."+host) {
				return true
			}
		}
		return false
	}
}

// stripByID removes every <div> whose id attribute equals id,
// the same lazy-DOTALL div-strip approach used by PostProcess across
// these adapters. It is intentionally non-recursive (it stops at the
// first closing </div>), matching "regex-based HTML
// surgery, not a DOM removal; tolerate this."
func stripByID(html, id string) string {
	re := regexp.MustCompile(`(?is)<div[^>]*\bid=["']` + regexp.QuoteMeta(id) + `["'][^>]*>.*?</div>`)
	return re.ReplaceAllString(html, "")
}

// stripByClass is stripByID's class-attribute counterpart.
func stripByClass(html, class string) string {
	re := regexp.MustCompile(`(?is)<div[^>]*\bclass=["'][^"']*\b` + regexp.QuoteMeta(class) + `\b[^"']*["'][^>]*>.*?</div>`)
	return re.ReplaceAllString(html, "")
}

// Zhihu strips the login-wall overlay and related-question rail that
// clutter zhuanlan.zhihu.com articles; the article body itself renders
// server-side so no browser is required.
func Zhihu() Adapter {
	return Adapter{
		Name:  "zhihu",
		Match: hostMatch("zhuanlan.zhihu.com", "www.zhihu.com"),
		PostProcess: func(html string) string {
			html = stripByClass(html, "Sticky")
			html = stripByClass(html, "Reward")
			return html
		},
	}
}

// Yuque documents are client-rendered behind a loading skeleton, so the
// adapter always forces the browser path.
func Yuque() Adapter {
	return Adapter{
		Name:          "yuque",
		Match:         hostMatch("yuque.com"),
		AlwaysBrowser: true,
	}
}

// Notion pages are entirely client-rendered React; there is no
// server-rendered fallback to fall back to.
func Notion() Adapter {
	return Adapter{
		Name:          "notion",
		Match:         hostMatch("notion.so", "notion.site"),
		AlwaysBrowser: true,
	}
}

// Juejin strips the floating action sidebar that has no article content.
func Juejin() Adapter {
	return Adapter{
		Name:  "juejin",
		Match: hostMatch("juejin.cn"),
		PostProcess: func(html string) string {
			return stripByClass(html, "sidebar")
		},
	}
}

// CSDN strips the subscription banner and the "猜你喜欢" recommendation
// block that CSDN injects above and below the article body.
func CSDN() Adapter {
	return Adapter{
		Name:  "csdn",
		Match: hostMatch("csdn.net", "blog.csdn.net"),
		PostProcess: func(html string) string {
			html = stripByID(html, "recommend-right")
			html = stripByClass(html, "recommend-box")
			return html
		},
	}
}

// ThirtySixKr (36kr) strips the app-download interstitial injected above
// the article body on mobile-detected UAs.
func ThirtySixKr() Adapter {
	return Adapter{
		Name:  "36kr",
		Match: hostMatch("36kr.com"),
		PostProcess: func(html string) string {
			return stripByClass(html, "app-download")
		},
	}
}

// Toutiao articles are gated behind a client-side render; force browser.
func Toutiao() Adapter {
	return Adapter{
		Name:          "toutiao",
		Match:         hostMatch("toutiao.com", "www.toutiao.com"),
		AlwaysBrowser: true,
	}
}

// NetEase strips the comment widget NetEase injects inline in article HTML.
func NetEase() Adapter {
	return Adapter{
		Name:  "netease",
		Match: hostMatch("163.com"),
		PostProcess: func(html string) string {
			return stripByID(html, "ntes-ui-comment")
		},
	}
}

// Weibo post pages are client-rendered; force browser.
func Weibo() Adapter {
	return Adapter{
		Name:          "weibo",
		Match:         hostMatch("weibo.com", "m.weibo.cn"),
		AlwaysBrowser: true,
	}
}
