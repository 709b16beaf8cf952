package tweet

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/risk"
	"github.com/songzhibin97/pumpsentinel/internal/utils/format"
)

// MaxLength 单条推文字符上限
const MaxLength = 280

const noMarketCap = "Cant calc the market cap if the token not launch on raydium"

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

func length(s string) int {
	return utf8.RuneCountInString(s)
}

// SplitContent packs "\n\n" separated paragraphs into tweets of at most max runes.
// A paragraph longer than max is split into sentences, and a sentence that still
// does not fit is wrapped at the last space.
func SplitContent(content string, max int) []string {
	if max <= 0 {
		max = MaxLength
	}

	tweets := make([]string, 0)
	current := ""
	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		candidate := paragraph
		if current != "" {
			candidate = current + "\n\n" + paragraph
		}
		if length(candidate) <= max {
			current = candidate
			continue
		}

		if current != "" {
			tweets = append(tweets, current)
			current = ""
		}
		if length(paragraph) <= max {
			current = paragraph
			continue
		}
		tweets = append(tweets, splitParagraph(paragraph, max)...)
	}
	if current != "" {
		tweets = append(tweets, current)
	}
	return tweets
}

// Flatten splits every thread part with SplitContent, keeping part order, so each
// returned tweet fits in max runes.
func Flatten(parts []string, max int) []string {
	tweets := make([]string, 0, len(parts))
	for _, part := range parts {
		tweets = append(tweets, SplitContent(part, max)...)
	}
	return tweets
}

func sentences(paragraph string) []string {
	idx := sentencePattern.FindAllStringIndex(paragraph, -1)
	if len(idx) == 0 {
		return []string{paragraph}
	}
	out := make([]string, 0, len(idx)+1)
	for _, loc := range idx {
		out = append(out, paragraph[loc[0]:loc[1]])
	}
	// 没有结尾标点的残句
	if tail := paragraph[idx[len(idx)-1][1]:]; strings.TrimSpace(tail) != "" {
		out = append(out, tail)
	}
	return out
}

func splitParagraph(paragraph string, max int) []string {
	var out []string
	tweet := ""
	flush := func() {
		if t := strings.TrimSpace(tweet); t != "" {
			out = append(out, t)
		}
		tweet = ""
	}

	for _, sentence := range sentences(paragraph) {
		if length(tweet+sentence) <= max {
			tweet += sentence
			continue
		}
		flush()
		if length(strings.TrimSpace(sentence)) <= max {
			tweet = sentence
			continue
		}
		out = append(out, wrap(strings.TrimSpace(sentence), max)...)
	}
	flush()
	return out
}

func wrap(s string, max int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > max {
		cut := max
		for i := max; i > 0; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// SecurityScore maps a risk level onto the score shown in the conclusion.
func SecurityScore(level risk.RiskLevel) int {
	switch level {
	case risk.RiskHigh:
		return 25
	case risk.RiskMedium:
		return 50
	default:
		return 75
	}
}

// SecurityInput 安全分析线程需要的数据
type SecurityInput struct {
	Token          models.TokenInfo
	RequestedBy    string
	TotalHolders   int
	CreatorTokens  []models.CreatorToken
	RiskLevel      risk.RiskLevel
	RiskFactors    []string
	Recommendation string
}

// SecurityThread builds the six part security thread: intro, basic info, creator
// history, risk analysis, recommendation and conclusion.
func SecurityThread(in SecurityInput) []string {
	requestedBy := in.RequestedBy
	if requestedBy == "" {
		requestedBy = "anonymous"
	}

	intro := fmt.Sprintf("🔍 Security Analysis for %s ($%s)\n\nRequested by @%s\n#TokenSecurity #Solana",
		in.Token.Name, in.Token.Symbol, requestedBy)

	basic := fmt.Sprintf("📊 Basic Information:\n- Name: %s\n- Symbol: %s\n- Supply: %s\n- Holders: %d",
		in.Token.Name, in.Token.Symbol, format.Amount(in.Token.Contract.Supply, 2), in.TotalHolders)

	return []string{
		intro,
		basic,
		creatorHistory(in.CreatorTokens),
		"⚠️ Risk Analysis:\n" + strings.Join(in.RiskFactors, "\n"),
		"💡 Recommendation:\n" + in.Recommendation,
		fmt.Sprintf("🏁 Conclusion:\nRisk Level: %s\nSecurity Score: %d/100\n\n#Web3Security #PumpToken",
			in.RiskLevel, SecurityScore(in.RiskLevel)),
	}
}

func creatorHistory(tokens []models.CreatorToken) string {
	if len(tokens) == 0 {
		return "👨‍💻 Creator History:\nNo previous tokens found"
	}

	entries := make([]string, 0, len(tokens))
	for i, t := range tokens {
		marketCap := noMarketCap
		if t.MarketCap != nil {
			marketCap = "$" + format.USD(*t.MarketCap)
		}
		entries = append(entries, fmt.Sprintf("%d. %s\n   address: %s\n   marketcap: %s\n   create time: %s",
			i+1, t.Name, t.TokenAddress, marketCap, day(t.Timestamp)))
	}
	return "👨‍💻 Creator History:\n" + strings.Join(entries, "\n\n")
}

func day(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02")
}

// Response is the chat reply that carries the whole thread.
func Response(parts []string) string {
	return "🔍 I've analyzed this token. Here's my detailed analysis:\n\n" + strings.Join(parts, "\n\n")
}
