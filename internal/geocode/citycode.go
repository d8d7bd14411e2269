package geocode

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// cityCodes maps lowercased city names to short display codes.
var cityCodes = map[string]string{
	// Mexico
	"ciudad de méxico": "CDMX", "ciudad de mexico": "CDMX", "cdmx": "CDMX", "mexico city": "CDMX",
	"guadalajara": "GDL", "monterrey": "MTY", "puebla": "PUE",
	"tijuana": "TIJ", "cancún": "CUN", "cancun": "CUN", "mérida": "MID", "merida": "MID",
	// United States
	"new york city": "NYC", "new york": "NYC",
	"los angeles": "LAX", "chicago": "CHI", "houston": "HOU",
	"miami": "MIA", "san francisco": "SFO", "seattle": "SEA",
	"boston": "BOS", "atlanta": "ATL", "dallas": "DAL",
	"denver": "DEN", "phoenix": "PHX", "washington": "WDC",
	// Europe
	"madrid": "MAD", "barcelona": "BCN", "seville": "SVQ", "sevilla": "SVQ",
	"paris": "PAR", "marseille": "MRS", "lyon": "LYS",
	"london": "LON", "manchester": "MAN", "edinburgh": "EDI",
	"berlin": "BER", "munich": "MUC", "münchen": "MUC", "hamburg": "HAM", "frankfurt": "FRA",
	"rome": "ROM", "roma": "ROM", "milan": "MIL", "milano": "MIL", "naples": "NAP", "napoli": "NAP",
	"amsterdam": "AMS", "rotterdam": "RTM",
	"brussels": "BRU", "bruxelles": "BRU",
	"vienna": "VIE", "wien": "VIE",
	"zurich": "ZRH", "zürich": "ZRH", "geneva": "GVA",
	"lisbon": "LIS", "lisboa": "LIS", "porto": "OPO",
	"athens": "ATH", "warsaw": "WAW", "krakow": "KRK", "kraków": "KRK",
	"prague": "PRG", "budapest": "BUD", "stockholm": "STO",
	"oslo": "OSL", "copenhagen": "CPH", "helsinki": "HEL",
	"kiev": "KBP", "kyiv": "KBP", "moscow": "MOW", "istanbul": "IST",
	// Latin America
	"buenos aires": "BUE", "córdoba": "COR", "cordoba": "COR",
	"bogotá": "BOG", "bogota": "BOG", "medellín": "MDE", "medellin": "MDE",
	"santiago": "SCL", "lima": "LIM", "quito": "UIO",
	"caracas": "CCS", "montevideo": "MVD",
	"são paulo": "SAO", "sao paulo": "SAO", "rio de janeiro": "RIO", "brasília": "BSB", "brasilia": "BSB",
	"havana": "HAV", "habana": "HAV", "panama city": "PTY",
	// Asia
	"tokyo": "TYO", "osaka": "OSA", "kyoto": "KYO",
	"seoul": "SEL", "busan": "PUS",
	"beijing": "BJS", "shanghai": "SHA", "shenzhen": "SZX",
	"hong kong": "HKG", "singapore": "SIN",
	"bangkok": "BKK", "jakarta": "JKT",
	"mumbai": "BOM", "delhi": "DEL", "new delhi": "DEL", "bangalore": "BLR", "bengaluru": "BLR",
	"karachi": "KHI", "dhaka": "DAC",
	"riyadh": "RUH", "dubai": "DXB", "abu dhabi": "AUH", "doha": "DOH",
	"tel aviv": "TLV", "jerusalem": "JRS", "beirut": "BEY", "amman": "AMM",
	// Africa
	"cairo": "CAI", "casablanca": "CAS", "tunis": "TUN", "algiers": "ALG",
	"lagos": "LOS", "accra": "ACC", "nairobi": "NBO",
	"johannesburg": "JNB", "cape town": "CPT", "addis ababa": "ADD",
	// Oceania
	"sydney": "SYD", "melbourne": "MEL", "brisbane": "BNE",
	"perth": "PER", "auckland": "AKL", "wellington": "WLG",
	// Canada
	"toronto": "YYZ", "montreal": "YUL", "montréal": "YUL",
	"vancouver": "YVR", "calgary": "YYC", "ottawa": "YOW",
}

// CodeForCity maps a resolved city name to a short display code: exact
// match first, then prefix match, then a consonant-preferred 3-letter
// abbreviation of the name itself.
func CodeForCity(rawName string) string {
	key := strings.ToLower(strings.TrimSpace(rawName))

	if code, ok := cityCodes[key]; ok {
		return code
	}
	for k, v := range cityCodes {
		if strings.HasPrefix(key, k) || strings.HasPrefix(k, key) {
			return v
		}
	}

	normalized := stripToLetters(rawName)
	consonants := strings.Map(func(r rune) rune {
		switch r {
		case 'A', 'E', 'I', 'O', 'U':
			return -1
		}
		return r
	}, normalized)

	code := normalized
	if len(consonants) >= 3 {
		code = consonants[:3]
	} else if len(normalized) > 3 {
		code = normalized[:3]
	}
	if code == "" {
		return "UNK"
	}
	if len(code) > 4 {
		code = code[:4]
	}
	return code
}

// stripToLetters removes diacritics and non-ASCII-letter runes, uppercased.
func stripToLetters(s string) string {
	var b strings.Builder
	for _, r := range s {
		r = stripAccent(r)
		if r >= 'a' && r <= 'z' {
			r = unicode.ToUpper(r)
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripAccent(r rune) rune {
	switch r {
	case 'á', 'à', 'â', 'ä', 'ã', 'å':
		return 'a'
	case 'é', 'è', 'ê', 'ë':
		return 'e'
	case 'í', 'ì', 'î', 'ï':
		return 'i'
	case 'ó', 'ò', 'ô', 'ö', 'õ':
		return 'o'
	case 'ú', 'ù', 'û', 'ü':
		return 'u'
	case 'ñ':
		return 'n'
	case 'ç':
		return 'c'
	}
	return r
}

// coordBox is a known coordinate range with a fixed code.
type coordBox struct {
	latMin, latMax float64
	lngMin, lngMax float64
	code           string
}

var coordBoxes = []coordBox{
	{18, 21, -100, -98, "CDMX"},
	{40, 42, -4, -2, "MAD"},
	{40, 41, -75, -73, "NYC"},
	{33, 35, -119, -117, "LAX"},
	{48, 49, 2, 3, "PAR"},
	{51, 52, -1, 1, "LON"},
	{35, 36, 139, 140, "TYO"},
	{52, 53, 13, 14, "BER"},
	{41, 42, 12, 13, "ROM"},
	{25, 26, 55, 56, "DXB"},
	{-34, -33, -71, -70, "SCL"},
	{-24, -22, -44, -42, "RIO"},
}

// CoordFallback derives a placeholder code from raw coordinates, used when
// reverse geocoding fails or is unavailable.
func CoordFallback(lat, lng float64) string {
	for _, b := range coordBoxes {
		if lat > b.latMin && lat < b.latMax && lng > b.lngMin && lng < b.lngMax {
			return b.code
		}
	}
	return fmt.Sprintf("L%02d", int(math.Abs(math.Round(lat))))
}
