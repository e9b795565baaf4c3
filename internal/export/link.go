package export

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/spec-matcher/internal/llm"
)

const (
	naverSearchURL    = "https://search.shopping.naver.com/search/all?query="
	officialLinkLabel = "공식 홈페이지 이동"
	searchLinkLabel   = "네이버 쇼핑 검색"
)

var reModelPunct = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// PurchaseLink returns a HYPERLINK formula for the item: the official product
// page when the model gave one, otherwise a shopping search.
func PurchaseLink(it llm.Item) string {
	if u, ok := it["official_url"].(string); ok && strings.HasPrefix(u, "http") {
		return hyperlink(u, officialLinkLabel)
	}
	return hyperlink(naverSearchURL+encodeQuery(SearchQuery(it)), searchLinkLabel)
}

// SearchQuery picks the shopping-search text: search_keyword when it has at
// least two characters, then "maker model" with punctuation stripped from the
// model, then the item name.
func SearchQuery(it llm.Item) string {
	if kw := Text(it["search_keyword"]); utf8.RuneCountInString(kw) >= 2 {
		return kw
	}
	maker, model := Text(it["maker"]), Text(it["model"])
	if maker != "" && model != "" {
		return maker + " " + reModelPunct.ReplaceAllString(model, "")
	}
	return Text(it["name"])
}

func encodeQuery(q string) string {
	return strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
}

func hyperlink(target, label string) string {
	return `=HYPERLINK("` + escapeFormula(target) + `", "` + label + `")`
}

func escapeFormula(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}
