// Package catalog enumerates the static vocabulary of project access control:
// organizational roles, access levels and CSI MasterFormat divisions.
//
// Values are validated once at the boundary with ParseRole, ParseAccessLevel
// and ParseDivision; everything downstream works with the typed values.
//
//	level, err := catalog.ParseAccessLevel(req.AccessLevel)
//	if err != nil {
//		return err
//	}
//	if level.AtLeast(catalog.AccessStandard) {
//		// may mutate project records
//	}
package catalog
