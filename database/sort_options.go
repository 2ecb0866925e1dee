package database

const (
	SortAddedAsc    = "added_asc"
	SortAddedDesc   = "added_desc"
	SortNameNatural = "name_nat"
)

const DefaultSortOrder = SortAddedAsc

// IsValidSortOrder checks if a string is a valid sort order constant
func IsValidSortOrder(order string) bool {
	switch order {
	case SortAddedAsc, SortAddedDesc, SortNameNatural:
		return true
	default:
		return false
	}
}
