package correlate

// connectedAlertPairs links alert types whose tickets should be merged rather
// than duplicated. The relation is stored as unordered pairs so mutuality
// holds by construction instead of by convention.
var connectedAlertPairs = [][2]string{
	{"Unfamiliar sign-in properties", "Atypical travel"},
	{"Unfamiliar sign-in properties", "Impossible travel"},
	{"Atypical travel", "Impossible travel"},
}

// AlertPairs returns a copy of the connected alert-type pairs.
func AlertPairs() [][2]string {
	out := make([][2]string, len(connectedAlertPairs))
	copy(out, connectedAlertPairs)
	return out
}

// ConnectedTitles returns the alert-type titles related to the given title,
// in declaration order. Unknown titles return nil.
func ConnectedTitles(title string) []string {
	var out []string
	for _, pair := range connectedAlertPairs {
		switch title {
		case pair[0]:
			out = append(out, pair[1])
		case pair[1]:
			out = append(out, pair[0])
		}
	}
	return out
}
