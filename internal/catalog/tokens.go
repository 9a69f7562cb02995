package catalog

// Category tokens recognised inside positive/negative compatibility lists.
const (
	TokenShadeIntolerant       = "shade-intolerant"
	TokenBenefitsFromShade     = "benefits-from-shade"
	TokenBenefitsFromCoverCrop = "benefits-from-cover-crop"
	TokenConflictsAnnuals      = "conflicts-with-annuals"
	TokenConflictsCompetitive  = "conflicts-with-competitive-exotics"
	TokenConflictsInvasive     = "conflicts-with-invasive-exotics"
	TokenBenefitsFromNatives   = "benefits-from-natives"
)

// Older datasets use one shade token on both sides, so the mapping depends on
// which list it appears in.
var (
	legacyPositiveTokens = map[string]string{
		"Culturas_Sombra":       TokenBenefitsFromShade,
		"Culturas_de_cobertura": TokenBenefitsFromCoverCrop,
		"Culturas_Nativas":      TokenBenefitsFromNatives,
	}
	legacyNegativeTokens = map[string]string{
		"Culturas_Sombra":       TokenShadeIntolerant,
		"Culturas_Anuais":       TokenConflictsAnnuals,
		"Exoticas_Competitivas": TokenConflictsCompetitive,
		"Exoticas_Invasoras":    TokenConflictsInvasive,
	}
)

func normalizeTokens(tokens []string, legacy map[string]string) []string {
	for i, token := range tokens {
		if mapped, ok := legacy[token]; ok {
			tokens[i] = mapped
		}
	}
	return tokens
}
