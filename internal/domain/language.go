package domain

// Language is one selectable conversation language.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	HoldPrompt string `json:"holdPrompt"`
}

// SupportedLanguages lists the languages the conversation screen offers.
var SupportedLanguages = []Language{
	{Code: "zh", Name: "中文", HoldPrompt: "按住说话"},
	{Code: "en", Name: "English", HoldPrompt: "Hold to Talk"},
	{Code: "ja", Name: "日本語", HoldPrompt: "押して話す"},
	{Code: "ko", Name: "한국어", HoldPrompt: "누르고 말하기"},
}

// LanguageByCode resolves a language code against the supported table,
// falling back to English for unknown codes.
func LanguageByCode(code string) Language {
	for _, l := range SupportedLanguages {
		if l.Code == code {
			return l
		}
	}
	return Language{Code: "en", Name: "English", HoldPrompt: "Hold to Talk"}
}

// LanguagePair holds the two active conversation languages. Left is the
// source language for left-side speakers and the target for right-side ones.
type LanguagePair struct {
	Left  Language `json:"left"`
	Right Language `json:"right"`
}

// Swapped returns the pair with sides exchanged.
func (p LanguagePair) Swapped() LanguagePair {
	return LanguagePair{Left: p.Right, Right: p.Left}
}

// TargetFor returns the translation target language for an utterance spoken
// on the given side.
func (p LanguagePair) TargetFor(side Side) Language {
	if side == SideLeft {
		return p.Right
	}
	return p.Left
}

// SourceFor returns the expected source language for the given side.
func (p LanguagePair) SourceFor(side Side) Language {
	if side == SideLeft {
		return p.Left
	}
	return p.Right
}
