package parse

// Locale holds the natural-language tokens the parsers match against.
// Month names are genitive forms as they appear after a day number.
type Locale struct {
	Months                [12]string
	TodayWord             string
	NegotiableMarker      string
	LocationDateSeparator string
}

// Polish is the locale used by olx.pl
var Polish = Locale{
	Months: [12]string{
		"stycznia",
		"lutego",
		"marca",
		"kwietnia",
		"maja",
		"czerwca",
		"lipca",
		"sierpnia",
		"września",
		"października",
		"listopada",
		"grudnia",
	},
	TodayWord:             "dzisiaj",
	NegotiableMarker:      "do negocjacji",
	LocationDateSeparator: " - ",
}

// month returns the 1-based month number for token, or 0 if unknown
func (l Locale) month(token string) int {
	for i, m := range l.Months {
		if m == token {
			return i + 1
		}
	}
	return 0
}
