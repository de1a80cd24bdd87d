package profanity

// defaultWords is the built-in filter list. Deliberately conservative:
// matching is substring-based over normalized text, so short words that
// commonly occur inside harmless ones do not belong here. Deployments that
// need a different list supply one via WORD_LIST_FILE.
var defaultWords = []string{
	"asshole",
	"bastard",
	"bitch",
	"bullshit",
	"dickhead",
	"dumbass",
	"fuck",
	"fucker",
	"fucking",
	"goddamn",
	"jackass",
	"motherfucker",
	"shithead",
	"wanker",
}
