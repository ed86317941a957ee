// Package llm implements the rule-based language simulator: intent and
// sentiment classification, template response generation and knowledge lookup.
package llm

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Intent is the coarse topic of a customer message.
type Intent string

const (
	IntentShipping Intent = "shipping"
	IntentReturns  Intent = "returns"
	IntentProduct  Intent = "product"
	IntentGeneral  Intent = "general"
)

// Emotion is derived from the final sentiment score.
type Emotion string

const (
	EmotionAngry        Emotion = "angry"
	EmotionFrustrated   Emotion = "frustrated"
	EmotionDisappointed Emotion = "disappointed"
	EmotionNeutral      Emotion = "neutral"
	EmotionPleased      Emotion = "pleased"
	EmotionSatisfied    Emotion = "satisfied"
	EmotionDelighted    Emotion = "delighted"
)

// Intensity reflects how many intensifier words were used.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Sentiment is the polarity analysis of a text.
type Sentiment struct {
	Score     float64   `json:"score"`
	Emotion   Emotion   `json:"emotion"`
	Intensity Intensity `json:"intensity"`
	Keywords  []string  `json:"keywords"`
}

// Classification combines intent and sentiment for one text.
type Classification struct {
	Intent         Intent    `json:"intent"`
	SentimentScore float64   `json:"sentimentScore"`
	Emotion        Emotion   `json:"emotion"`
	Intensity      Intensity `json:"intensity"`
	Keywords       []string  `json:"keywords"`
}

// Checked in order; the first set with a match wins.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentShipping, []string{"ship", "deliver", "track", "arrive"}},
	{IntentReturns, []string{"return", "refund", "money back", "exchange"}},
	{IntentProduct, []string{"feature", "work", "spec", "compatible"}},
}

var (
	positiveWords = []string{
		"good", "great", "excellent", "amazing", "wonderful", "fantastic", "helpful",
		"thank", "thanks", "appreciate", "happy", "pleased", "love", "like",
	}
	negativeWords = []string{
		"bad", "terrible", "awful", "horrible", "poor", "disappointed", "frustrating",
		"angry", "upset", "annoyed", "unhappy", "hate", "dislike", "problem", "issue",
		"wrong", "mistake", "error", "delay", "broken", "failure", "fail",
	}
	intensifierWords = []string{
		"very", "extremely", "incredibly", "really", "so", "too", "absolutely",
		"!", "never", "always",
	}
	negationMarkers = []string{"not ", "n't ", " no "}
)

const (
	maxKeywords          = 3
	shortTextLimit       = 50
	maxNegationTransfer  = 2
	intensifierStep      = 0.05
	intensifiedScoreLow  = 0.1
	intensifiedScoreHigh = 0.9
)

var punctuationStripper = strings.NewReplacer(".", "", ",", "", "!", "", "?", "", ";", "", ":", "")

// Classify assigns an intent and sentiment to text. It is pure and deterministic.
func Classify(text string) Classification {
	s := AnalyzeSentiment(text)
	return Classification{
		Intent:         DetectIntent(text),
		SentimentScore: s.Score,
		Emotion:        s.Emotion,
		Intensity:      s.Intensity,
		Keywords:       s.Keywords,
	}
}

// DetectIntent returns the first intent whose keyword appears in text.
func DetectIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, set := range intentKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.intent
			}
		}
	}
	return IntentGeneral
}

// AnalyzeSentiment scores text by counting polarity keywords. Empty or
// keyword-free text yields a neutral 0.5.
func AnalyzeSentiment(text string) Sentiment {
	lower := strings.ToLower(text)
	short := utf8.RuneCountInString(lower) < shortTextLimit

	var positive, negative, intensifiers int
	keywords := make([]string, 0, maxKeywords)

	for _, token := range strings.Fields(lower) {
		word := punctuationStripper.Replace(token)
		if slices.Contains(positiveWords, word) {
			positive++
			keywords = append(keywords, word)
		}
		if slices.Contains(negativeWords, word) {
			negative++
			keywords = append(keywords, word)
		}
		if slices.Contains(intensifierWords, word) {
			intensifiers++
			if short {
				keywords = append(keywords, word)
			}
		}
	}

	if hasNegation(lower) {
		shift := min(positive, maxNegationTransfer)
		positive -= shift
		negative += shift
	}

	score := 0.5
	if total := positive + negative; total > 0 {
		score = 0.5 + 0.5*float64(positive-negative)/float64(total)
	}

	if intensifiers > 0 {
		switch {
		case score < 0.5:
			score = max(intensifiedScoreLow, score-float64(intensifiers)*intensifierStep)
		case score > 0.5:
			score = min(intensifiedScoreHigh, score+float64(intensifiers)*intensifierStep)
		}
	}

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	return Sentiment{
		Score:     score,
		Emotion:   EmotionForScore(score),
		Intensity: intensityFor(intensifiers),
		Keywords:  keywords,
	}
}

func hasNegation(lower string) bool {
	for _, marker := range negationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// EmotionForScore maps a sentiment score onto an emotion label.
func EmotionForScore(score float64) Emotion {
	switch {
	case score < 0.3:
		return EmotionAngry
	case score < 0.4:
		return EmotionFrustrated
	case score < 0.45:
		return EmotionDisappointed
	case score > 0.8:
		return EmotionDelighted
	case score > 0.7:
		return EmotionSatisfied
	case score > 0.6:
		return EmotionPleased
	default:
		return EmotionNeutral
	}
}

func intensityFor(count int) Intensity {
	switch {
	case count == 0:
		return IntensityLow
	case count == 1:
		return IntensityMedium
	default:
		return IntensityHigh
	}
}
