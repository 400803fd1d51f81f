package translator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fleetlens-io/fleetlens-engine/pkg/models"
)

// RegularizedBadge is the marker the presentation layer appends to values
// known to be non-canonical spellings.
const RegularizedBadge = "[R]"

// codeSuffix matches a trailing parenthetical numeric code, e.g. "CR-V (231)".
var codeSuffix = regexp.MustCompile(`^(.*?)\s*\((\d+)\)$`)

// ParseToken parses one display token at the system boundary. Display
// strings may carry a parenthetical dimension code and a regularization
// badge; nothing past this function ever re-parses display strings.
//
//	"CR-V"           -> {DisplayName: "CR-V"}
//	"CR-V (231)"     -> {DisplayName: "CR-V", DimensionID: 231}
//	"CRV (231) [R]"  -> {DisplayName: "CRV", DimensionID: 231, IsRegularized: true}
func ParseToken(raw string) models.FilterToken {
	token := models.FilterToken{}
	rest := strings.TrimSpace(raw)

	if strings.HasSuffix(rest, RegularizedBadge) {
		token.IsRegularized = true
		rest = strings.TrimSpace(strings.TrimSuffix(rest, RegularizedBadge))
	}

	if m := codeSuffix.FindStringSubmatch(rest); m != nil {
		if id, err := strconv.ParseUint(m[2], 10, 32); err == nil {
			token.DimensionID = uint32(id)
			rest = strings.TrimSpace(m[1])
		}
	}

	token.DisplayName = rest
	return token
}
