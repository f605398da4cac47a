package littleexport

// Area prefixes are the path contract between the archive engine and its
// collaborators. A prefix ending in "/" owns every path below it; a
// prefix without a trailing "/" names exactly one entry.
const (
	// AreaStorage is the storage-dump area: a single JSON document
	// holding simple key-value state.
	AreaStorage = "storage.json"

	// AreaRecords is the structured-record area, organized as
	// indexeddb/<database>/<store>/<batch-index> with a sibling
	// indexeddb/<database>/<store>/schema.json per store.
	AreaRecords = "indexeddb/"

	// AreaCache is the cached-network-response area.
	AreaCache = "cache/"

	// AreaCustom is the custom-item area for collaborator-defined state.
	AreaCustom = "custom/"

	// AreaFiles is the raw-file-tree area.
	AreaFiles = "files/"
)

// areaRank fixes the category order entries are written in during
// export. Unknown areas sort after the known ones, in the order the
// caller supplied them.
func areaRank(area string) int {
	switch area {
	case AreaStorage:
		return 0
	case AreaRecords:
		return 1
	case AreaCache:
		return 2
	case AreaCustom:
		return 3
	case AreaFiles:
		return 4
	default:
		return 5
	}
}
