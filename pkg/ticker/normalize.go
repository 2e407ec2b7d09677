package ticker

import "strings"

// Vendor suffixes appended by Trading212 exports. Stripped repeatedly so
// chained artifacts like "VOD_EQ_GB" collapse to the bare symbol.
var suffixes = []string{"_EQ", "_US", "_BE", "_DE", "_GB", "_FR", "_NL", "_ES", "_IT"}

type mapping struct {
	from, to string
}

// Curated exact-match rewrites. Order matters: first match wins, and some
// entries deliberately map a symbol to itself so later stages leave it alone.
var specialMappings = []mapping{
	{"SSLNL", "SSLN"}, {"SGLNL", "SGLN"}, {"3GLD", "3GLD"}, {"SGLN", "SGLN"},
	{"PHGP", "PHGP"}, {"PHAU", "PHAU"}, {"3LTS", "3LTS"}, {"3USL", "3USL"},
	{"LLOY1", "LLOY"}, {"VOD1", "VOD"}, {"BARC1", "BARC"}, {"TSCO1", "TSCO"},
	{"BPL1", "BP"}, {"BPL", "BP"}, {"AZNL1", "AZN"}, {"AZNL", "AZN"},
	{"SGLN1", "SGLN"}, {"MAG5", "MAG5"}, {"MAG5L", "MAG5"}, {"MAG7", "MAG7"},
	{"MAG7L", "MAG7"}, {"GLD3", "GLD3"}, {"3UKL", "3UKL"}, {"5QQQ", "5QQQ"},
	{"TSL3", "TSL3"}, {"NVD3", "NVD3"}, {"AVL", "AV"}, {"UUL", "UU"},
	{"BAL", "BA"}, {"SLL", "SL"}, {"AU", "AUT"}, {"RBL", "RKT"}, {"MICCL", "MICC"},
}

// Symbols where a trailing "1" is a vendor row-versioning artifact rather
// than part of the symbol itself.
var protectedStems = map[string]bool{
	"LLOY": true, "BARC": true, "VOD": true, "HSBA": true, "TSCO": true,
	"BP": true, "AZN": true, "RR": true, "NG": true, "SGLN": true, "SSLN": true,
}

// US-listed symbols that must never receive the .L London suffix, even when
// they look short enough to be LSE tickers.
var usExclusions = map[string]bool{
	"AAPL": true, "MSFT": true, "GOOG": true, "AMZN": true, "NVDA": true,
	"TSLA": true, "META": true, "NFLX": true, "AMD": true, "INTC": true,
	"PYPL": true, "ADBE": true, "CSCO": true, "PEP": true, "COST": true,
	"AVGO": true, "QCOM": true, "TXN": true, "ORCL": true, "CRM": true,
	"IBM": true, "UBER": true, "ABNB": true, "SNOW": true, "PLTR": true,
	"SQ": true, "SHOP": true, "SPOT": true, "GOOGL": true, "JPM": true,
	"BAC": true, "WFC": true, "C": true, "GS": true, "MS": true,
	"BLK": true, "AXP": true, "V": true, "MA": true, "COF": true,
	"USB": true, "CAT": true, "DE": true, "GE": true, "GM": true,
	"F": true, "BA": true, "LMT": true, "RTX": true, "HON": true,
	"UPS": true, "FDX": true, "UNP": true, "MMM": true, "WMT": true,
	"TGT": true, "HD": true, "LOW": true, "MCD": true, "SBUX": true,
	"NKE": true, "KO": true, "PG": true, "CL": true, "MO": true,
	"PM": true, "DIS": true, "CMCSA": true, "JNJ": true, "PFE": true,
	"MRK": true, "ABBV": true, "LLY": true, "UNH": true, "CVS": true,
	"AMGN": true, "GILD": true, "BMY": true, "ISRG": true, "TMO": true,
	"ABT": true, "DHR": true, "XOM": true, "CVX": true, "COP": true,
	"SLB": true, "EOG": true, "OXY": true, "KMI": true, "HAL": true,
	"T": true, "VZ": true, "TMUS": true, "SPY": true, "QQQ": true,
	"DIA": true, "IWM": true, "IVV": true, "VOO": true, "VTI": true,
	"GLD": true, "SLV": true, "ARKK": true, "SMH": true, "XLF": true,
	"XLE": true, "XLK": true, "XLV": true, "Z": true, "O": true,
	"D": true, "R": true, "K": true, "X": true, "S": true,
	"M": true, "A": true, "G": true,
}

// Normalize reconciles a raw provider ticker into its canonical market
// symbol, appending .L for London-listed instruments. It is a total
// function: every input produces some output, the empty string included.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	normalized := strings.ReplaceAll(strings.TrimSpace(strings.ToUpper(raw)), "$", "")

	// A dot means the symbol already carries an exchange qualifier.
	if strings.Contains(normalized, ".") {
		return normalized
	}

	// Keep the cleaned-but-unstripped form around: explicit market hints
	// like _EQ/_US live in the suffixes we are about to remove.
	original := normalized

	for {
		changed := false
		for _, s := range suffixes {
			if strings.HasSuffix(normalized, s) {
				normalized = normalized[:len(normalized)-len(s)]
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	normalized = strings.ReplaceAll(normalized, "_", "")

	for _, m := range specialMappings {
		if normalized == m.from {
			normalized = m.to
			break
		}
	}

	// Trailing "1" disambiguation: LLOY1 is a vendor artifact of LLOY, but
	// MAG71 would not be (not a protected stem).
	if strings.HasSuffix(normalized, "1") && len(normalized) > 3 {
		if stem := normalized[:len(normalized)-1]; protectedStems[stem] {
			normalized = stem
		}
	}

	explicitUK := strings.Contains(original, "_EQ") && !strings.Contains(original, "_US")
	likelyUK := (len(normalized) <= 5 || strings.HasSuffix(normalized, "L")) && !usExclusions[normalized]

	// UK depositary-receipt convention: drop the trailing L marker. This
	// must happen before the leveraged check so products like 3UKL are
	// re-evaluated on their bare form.
	if likelyUK && strings.HasSuffix(normalized, "L") && len(normalized) > 3 && !usExclusions[normalized] {
		normalized = normalized[:len(normalized)-1]
	}

	leveraged := strings.HasPrefix(normalized, "3") || strings.HasPrefix(normalized, "5") || strings.HasPrefix(normalized, "7") ||
		strings.HasSuffix(normalized, "2") || strings.HasSuffix(normalized, "3") ||
		strings.HasSuffix(normalized, "5") || strings.HasSuffix(normalized, "7")

	if explicitUK || likelyUK || leveraged {
		if !strings.HasSuffix(normalized, ".L") && !strings.Contains(normalized, ".") {
			return normalized + ".L"
		}
	}

	return normalized
}
