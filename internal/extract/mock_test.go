package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/tangocommunity/crawler/internal/model"
)

type fakeCompleter struct {
	out        string
	err        error
	calls      int
	lastSystem string
	lastPrompt string
	lastMax    int64
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string, maxTokens int64) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastPrompt = prompt
	f.lastMax = maxTokens
	return f.out, f.err
}

type fakeLinks struct{}

func (fakeLinks) Build(u string, p model.AffiliateProvider) string {
	return u + "#" + string(p)
}

func (fakeLinks) AffiliateID(p model.AffiliateProvider) string {
	if p == model.ProviderAliExpress {
		return ""
	}
	return "id-" + string(p)
}

func (fakeLinks) HotelURL(p model.AffiliateProvider, name string) string {
	return fmt.Sprintf("https://%s.example/hotel/%s", p, strings.ToLower(strings.ReplaceAll(name, " ", "-")))
}
