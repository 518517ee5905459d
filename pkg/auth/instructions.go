package auth

import (
	"fmt"
	"strings"
)

type keySignup struct {
	source string
	name   string
	url    string
	note   string
}

var signups = []keySignup{
	{"harvard", "Harvard Art Museums", "https://harvardartmuseums.org/collections/api", "Fill in the request form; the key arrives by email."},
	{"rijks", "Rijksmuseum", "https://www.rijksmuseum.nl/en/rijksstudio", "Create a Rijksstudio account, then request a key under advanced settings."},
}

// RequiresKey reports whether source needs an API key
func RequiresKey(source string) bool {
	for _, s := range signups {
		if s.source == source {
			return true
		}
	}
	return false
}

// ShowKeyGuide prints where to obtain keys for the sources that need one
func ShowKeyGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("MUSEUM API KEYS")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("The Met, the Art Institute of Chicago and the Cleveland Museum of Art")
	fmt.Println("need no key. These sources stay disabled until a key is stored:")
	fmt.Println()

	for _, s := range signups {
		fmt.Printf("  %-8s %s\n", s.source, s.name)
		fmt.Printf("           %s\n", s.url)
		fmt.Printf("           %s\n", s.note)
		fmt.Println()
	}

	fmt.Println("Store a key with:   canvasfetch auth set <source>")
	fmt.Printf("Or export it as:    %s\n", EnvVar("<source>"))
	fmt.Println(strings.Repeat("=", 72))
}
