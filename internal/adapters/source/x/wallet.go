package x

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var walletPattern = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)

// WalletResolver maps a post to the wallet that should receive its reward:
// an address written in the post wins, then the per-handle mapping, then the
// default wallet.
type WalletResolver struct {
	byHandle map[string]string
	fallback string
}

// NewWalletResolver builds a resolver. Handle keys are matched
// case-insensitively and may carry a leading @.
func NewWalletResolver(byHandle map[string]string, fallback string) *WalletResolver {
	r := &WalletResolver{byHandle: make(map[string]string, len(byHandle)), fallback: strings.TrimSpace(fallback)}
	for h, w := range byHandle {
		r.byHandle[normalizeHandle(h)] = strings.TrimSpace(w)
	}
	return r
}

// Resolve returns the checksummed wallet for handle, or "" when none is known.
func (r *WalletResolver) Resolve(handle, text string) string {
	if m := walletPattern.FindString(text); m != "" {
		return common.HexToAddress(m).Hex()
	}
	if r == nil {
		return ""
	}
	if w, ok := r.byHandle[normalizeHandle(handle)]; ok && common.IsHexAddress(w) {
		return common.HexToAddress(w).Hex()
	}
	if common.IsHexAddress(r.fallback) {
		return common.HexToAddress(r.fallback).Hex()
	}
	return ""
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}
