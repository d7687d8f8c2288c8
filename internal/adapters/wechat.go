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
	"regexp"
	"strings"
)

const mobileUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 " +
	"(KHTML, like Gecko) Version/17.0 MobileSafari/604.1 MicroMessenger/8.0.40"

// WeChat mandates browser rendering with a mobile WeChat UA (the
// article page is client-rendered and blocks non-WeChat user agents),
// and rewrites the CDN image URLs so the final document proxies images
// through this service's /img/ endpoint instead of leaking hotlinks
// that WeChat's CDN will 403 once off-domain.
func WeChat() Adapter {
	return Adapter{
		Name: "wechat",
		Match: func(u *url.URL) bool {
			h := strings.ToLower(u.Hostname())
			return h == "mp.weixin.qq.com"
		},
		AlwaysBrowser: true,
		ConfigurePage: func(ctx context.Context, page Page, state PageState) error {
			if err := page.SetUserAgent(ctx, mobileUA); err != nil {
				return err
			}
			return page.SetExtraHeaders(ctx, map[string]string{"Accept-Language": "zh-CN,zh;q=0.9"})
		},
		PostProcess: wechatRewriteImages,
	}
}

var wechatImgRe = regexp.MustCompile(`(?i)(src|data-src)=["'](https?://mmbiz\.qpic\.cn/[^"']+)["']`)

// wechatRewriteImages rewrites WeChat CDN image URLs to route through
// this service's own /img/ proxy endpoint "For sites
// whose images must be proxied" note.
func wechatRewriteImages(html string) string {
	return wechatImgRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := wechatImgRe.FindStringSubmatch(m)
		if len(sub) != 3 {
			return m
		}
		return sub[1] + `="/img/` + url.QueryEscape(sub[2]) + `"`
	})
}
