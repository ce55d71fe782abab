package characters

// Canonical names referenced by other packages.
const (
	Jesus      = "Jesus"
	HolySpirit = "Holy Spirit"
	God        = "God"
)

// DefaultAgent is the primary agent of a chapter when no other
// non-background character qualifies.
const DefaultAgent = Jesus

// Family is one canonical character and the forms that resolve to it.
// Adding a name variant is a one-line edit to DefaultFamilies.
type Family struct {
	Name       string
	Lemmas     []string
	Variants   []string
	Background bool
}

// DefaultFamilies covers the named agents of the Greek text of Mark.
var DefaultFamilies = []Family{
	{
		Name:     Jesus,
		Lemmas:   []string{"Ἰησοῦς"},
		Variants: []string{"Ἰησοῦς", "Ἰησοῦ", "Ἰησοῦν"},
	},
	{
		Name:     HolySpirit,
		Lemmas:   []string{"πνεῦμα"},
		Variants: []string{"πνεῦμα", "πνεύματος", "πνεύματι"},
	},
	{
		Name:       God,
		Lemmas:     []string{"θεός"},
		Variants:   []string{"θεός", "θεοῦ", "θεῷ", "θεόν"},
		Background: true,
	},
	{
		Name:     "John the Baptist",
		Lemmas:   []string{"Ἰωάννης"},
		Variants: []string{"Ἰωάννης", "Ἰωάννου", "Ἰωάννην", "Ἰωάννῃ"},
	},
	{
		Name:     "Simon Peter",
		Lemmas:   []string{"Σίμων", "Πέτρος"},
		Variants: []string{"Σίμων", "Σίμωνος", "Σίμωνα", "Πέτρος", "Πέτρον", "Πέτρῳ", "Πέτρου"},
	},
	{
		Name:     "Andrew",
		Lemmas:   []string{"Ἀνδρέας"},
		Variants: []string{"Ἀνδρέας", "Ἀνδρέαν", "Ἀνδρέου"},
	},
	{
		Name:     "James",
		Lemmas:   []string{"Ἰάκωβος"},
		Variants: []string{"Ἰάκωβος", "Ἰάκωβον", "Ἰακώβου"},
	},
	{
		Name:     "Satan",
		Lemmas:   []string{"Σατανᾶς"},
		Variants: []string{"Σατανᾶς", "Σατανᾶ", "Σατανᾶν"},
	},
	{
		Name:       "Pharisees",
		Lemmas:     []string{"Φαρισαῖος"},
		Variants:   []string{"Φαρισαῖοι", "Φαρισαίων", "Φαρισαίοις"},
		Background: true,
	},
	{
		Name:       "Crowd",
		Lemmas:     []string{"ὄχλος"},
		Variants:   []string{"ὄχλος", "ὄχλον", "ὄχλου", "ὄχλῳ"},
		Background: true,
	},
}
