// Package translate formats user visible messages for the current locale.
package translate

import (
	"log"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = systemPrinter()

// systemPrinter matches the user's preferred locales, falling back to en-US.
func systemPrinter() *message.Printer {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("fakeos: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	return message.NewPrinter(message.MatchLanguage(locales...))
}

// SetLanguage overrides the locale with a BCP 47 tag, such as "de-CH".
// An empty tag restores the system locale.
func SetLanguage(lang string) (err error) {
	if len(lang) == 0 {
		printer = systemPrinter()
		return
	}

	tag, err := language.Parse(lang)
	if err != nil {
		return
	}

	printer = message.NewPrinter(tag)
	return
}

// From formats an en-US Sprintf() style key in the selected locale.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}
