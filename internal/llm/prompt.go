package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/spec-matcher/constants"
)

const targetStructure = `{
    "items": [
        {
            "item_number": "String",
            "name": "String (Korean Name)",
            "quantity": Integer,
            "maker": "String",
            "model": "String",
            "estimated_usd": Integer (Estimated MSRP in USD. Output 0 if unknown),
            "estimated_krw": Integer (Multiply estimated_usd by %[1]d to get KRW. Output 0 if unknown),
            "official_url": "String (Official manufacturer product URL if known. Otherwise leave empty)",
            "search_keyword": "String (e.g., 'Maker Model price')"
        }
    ]
}`

// BuildPrompt composes the matching prompt for one batch. catalogText is the
// rendered internal product list (or the degraded-catalog message).
func BuildPrompt(catalogText, chunkText string) string {
	rate := constants.USDToKRW
	parts := []string{
		"Role: You are a Senior Pre-Sales Engineer for Pro AV & IT equipment.",
		"Task: Analyze the anonymous specifications and identify the EXACT product model.",
		"",
		"[STEP 1: CHECK INTERNAL INVENTORY (PRIORITY)]",
		"First, verify if any item in the request matches our Internal Product List below.",
		"If a match is found based on category and key specs, **YOU MUST SELECT THE INTERNAL PRODUCT**.",
		"",
		">>> INTERNAL PRODUCT LIST <<<",
		strings.TrimRight(catalogText, "\n"),
		">>> END OF LIST <<<",
		"",
		"[STEP 2: IF NO INTERNAL MATCH -> DEDUCE EXTERNAL MODEL]",
		`Only if the item is NOT in our internal list, perform "Reverse Engineering" to find the original external brand.`,
		"",
		"[RULES FOR DEDUCTION (EXTERNAL ITEMS)]",
		"1. **Analyze Specs**: Look for unique identifiers.",
		"2. **Find the Original**: Match specs against major brands.",
		fmt.Sprintf("3. **Pricing Accuracy (CRITICAL)**: ALWAYS estimate the MSRP or market price in USD ($) first, "+
			"because your training data is mostly in English. Then, convert that USD price to KRW (₩). "+
			"Assume a fixed exchange rate of 1 USD = %s KRW.", thousands(rate)),
		"",
		"[TARGET JSON STRUCTURE]",
		fmt.Sprintf(targetStructure, rate),
		"",
		"[INPUT TEXT (PROCUREMENT SPECS)]",
		chunkText,
		"",
		"[OUTPUT]",
		"Output ONLY valid JSON string.",
	}
	return strings.Join(parts, "\n")
}

func thousands(n int) string {
	s := fmt.Sprint(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
