package playout

// Timeline object id conventions. Expressions reference these ids across
// objects ("#part_group_X.start"), so they must be stable between builds of
// the same instances.

func partGroupID(partInstanceID string) string {
	return "part_group_" + partInstanceID
}

func partFirstObjectID(partInstanceID string) string {
	return "part_group_firstobject_" + partInstanceID
}

func pieceGroupID(pieceInstanceID string) string {
	return "piece_group_" + pieceInstanceID
}

func pieceFirstObjectID(pieceInstanceID string) string {
	return "piece_group_firstobject_" + pieceInstanceID
}
