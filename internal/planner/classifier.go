package planner

import (
	"regexp"
	"sort"
	"strings"

	"truthengine/internal/types"
)

// claimTypePatterns maps claim categories to the keywords that signal
// them. Matching is deterministic lowercase substring search; categories
// are independent of each other.
var claimTypePatterns = map[string][]string{
	"impersonation": {
		"irs", "internal revenue", "social security", "ssa", "medicare",
		"fbi", "government agency", "tax authority", "customs", "police",
	},
	"lottery": {
		"lottery", "prize", "winner", "jackpot", "you have won", "sweepstakes",
	},
	"urgency": {
		"urgent", "immediately", "act now", "24 hours", "deadline",
		"expires", "final notice", "last chance",
	},
	"financial-lure": {
		"refund", "payout", "inheritance", "investment opportunity",
		"guaranteed return", "unclaimed funds",
	},
	"credential-phishing": {
		"verify your account", "confirm your identity", "password",
		"login", "credentials", "suspended account",
	},
	"payment-oddity": {
		"gift card", "wire transfer", "bitcoin", "crypto", "western union",
		"prepaid card",
	},
	"software-scam": {
		"download this tool", "install now", "repository", "github.com",
		"npm install", "cracked version",
	},
	"document-fraud": {
		"attached invoice", "see attached", "open the attachment",
		"enable macros", "enable editing", "docusign",
	},
}

// agencyNames are the authorities scammers impersonate most.
var agencyNames = []string{
	"IRS", "SSA", "FBI", "Medicare", "Interpol", "Europol", "HMRC",
}

// temporalPhrases are deadline markers surfaced as temporal hints.
var temporalPhrases = []string{
	"24 hours", "48 hours", "immediately", "deadline", "today",
	"expires", "by end of day",
}

var domainPattern = regexp.MustCompile(`\b[a-z0-9][a-z0-9.-]*\.(?:com|net|org|gov|io|biz)\b`)

// Classify builds a normalized ClaimContext from raw text. Deterministic:
// the same text always yields the same context.
func Classify(text, provenance string, extractionConfidence float64) types.ClaimContext {
	lower := strings.ToLower(text)

	var claimTypes []string
	for claimType, keywords := range claimTypePatterns {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				claimTypes = append(claimTypes, claimType)
				break
			}
		}
	}
	sort.Strings(claimTypes)

	var entities []string
	for _, agency := range agencyNames {
		if strings.Contains(lower, strings.ToLower(agency)) {
			entities = append(entities, agency)
		}
	}
	for _, domain := range domainPattern.FindAllString(lower, -1) {
		entities = append(entities, domain)
	}
	entities = dedupe(entities)

	var temporal []string
	for _, phrase := range temporalPhrases {
		if strings.Contains(lower, phrase) {
			temporal = append(temporal, phrase)
		}
	}

	if provenance == "" {
		provenance = "direct_text"
	}

	return types.ClaimContext{
		Text:                 text,
		Provenance:           provenance,
		ExtractionConfidence: extractionConfidence,
		ClaimTypes:           claimTypes,
		Entities:             entities,
		TemporalHints:        temporal,
		DetectionStrategy:    "keyword",
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
