package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Division is a two-digit CSI MasterFormat division code
type Division string

// MaxDivision is the highest division number in MasterFormat
const MaxDivision = 49

var divisionNames = map[Division]string{
	"00": "Procurement and Contracting Requirements",
	"01": "General Requirements",
	"02": "Existing Conditions",
	"03": "Concrete",
	"04": "Masonry",
	"05": "Metals",
	"06": "Wood, Plastics, and Composites",
	"07": "Thermal and Moisture Protection",
	"08": "Openings",
	"09": "Finishes",
	"10": "Specialties",
	"11": "Equipment",
	"12": "Furnishings",
	"13": "Special Construction",
	"14": "Conveying Equipment",
	"21": "Fire Suppression",
	"22": "Plumbing",
	"23": "Heating, Ventilating, and Air Conditioning",
	"25": "Integrated Automation",
	"26": "Electrical",
	"27": "Communications",
	"28": "Electronic Safety and Security",
	"31": "Earthwork",
	"32": "Exterior Improvements",
	"33": "Utilities",
	"34": "Transportation",
	"35": "Waterway and Marine Construction",
	"40": "Process Interconnections",
	"41": "Material Processing and Handling Equipment",
	"42": "Process Heating, Cooling, and Drying Equipment",
	"43": "Process Gas and Liquid Handling, Purification, and Storage Equipment",
	"44": "Pollution and Waste Control Equipment",
	"45": "Industry-Specific Manufacturing Equipment",
	"46": "Water and Wastewater Equipment",
	"48": "Electrical Power Generation",
}

// ParseDivision normalizes a division code. "3" and " 03 " both yield "03".
// An empty string parses to the empty (unrestricted) division.
func ParseDivision(s string) (Division, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if len(s) > 2 {
		return "", fmt.Errorf("invalid CSI division %q", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxDivision {
		return "", fmt.Errorf("invalid CSI division %q", s)
	}
	return Division(fmt.Sprintf("%02d", n)), nil
}

// DivisionName returns the catalog title of d, or "" when d is reserved or unknown
func DivisionName(d Division) string {
	return divisionNames[d]
}

// Divisions returns the named divisions in ascending order
func Divisions() []Division {
	out := make([]Division, 0, len(divisionNames))
	for i := 0; i <= MaxDivision; i++ {
		d := Division(fmt.Sprintf("%02d", i))
		if _, ok := divisionNames[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
