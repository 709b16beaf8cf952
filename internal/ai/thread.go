package ai

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/songzhibin97/pumpsentinel/internal/models"
	"github.com/songzhibin97/pumpsentinel/internal/utils/format"
	"github.com/songzhibin97/pumpsentinel/internal/utils/retry"
)

// ThreadParts 监控推文固定为四条
const ThreadParts = 4

const threadSystemPrompt = "You are Nyx, a professional Solana ecosystem analyst, focusing on token risk analysis on the PumpFun platform. " +
	"Your analysis style: 1) Direct and clear 2) Data-driven 3) Emphasis on key points 4) Professional and objective. " +
	"Remember: Fast creation is normal, new wallets need caution but are not always risky, low holdings are positive as they prevent dumping, focus on historical success cases. " +
	"Each response must be complete with no unfinished sentences."

var threadMarkers = []string{"🚨", "👨‍💻", "📜", "💡"}

// keyword decorations, applied in order
var keywordEmojis = []struct{ key, emoji string }{
	{"risk", "⚠️"},
	{"new wallet", "👤"},
	{"mature wallet", "👨‍💼"},
	{"holdings", "💰"},
	{"time", "⏰"},
	{"success", "✅"},
	{"failure", "❌"},
	{"warning", "🚨"},
	{"analysis", "🔍"},
	{"market", "📊"},
	{"recommendation", "💡"},
	{"bullish", "📈"},
	{"bearish", "📉"},
	{"attention", "⚡"},
	{"history", "📜"},
	{"creator", "👨‍💻"},
	{"liquidity", "💧"},
	{"trading", "💱"},
	{"monitor", "🎯"},
	{"alert", "🔔"},
	{"rating", "📊"},
	{"high risk", "🔴"},
	{"medium risk", "🟡"},
	{"low risk", "🟢"},
	{"investment", "💵"},
	{"price", "💲"},
	{"supply", "📦"},
	{"opportunity", "🎯"},
}

var partNumber = regexp.MustCompile(`\((\d+)/(\d+)\)`)

const timeLayout = "2006-01-02 15:04:05 MST"

// ThreadWriter asks the LLM for the four part monitor thread.
type ThreadWriter struct {
	llm    Completer
	policy retry.Policy
	now    func() time.Time
	log    *slog.Logger
}

func NewThreadWriter(llm Completer, log *slog.Logger) *ThreadWriter {
	return &ThreadWriter{
		llm:    llm,
		policy: retry.Policy{Attempts: 3, Base: time.Second},
		now:    time.Now,
		log:    log,
	}
}

// AnalyzeTokenRisk never returns an error; failures come back as a readable message.
func (w *ThreadWriter) AnalyzeTokenRisk(ctx context.Context, timeline models.TokenTimeline, holding models.CreatorHolding) string {
	prompt := BuildThreadPrompt(timeline, holding, w.now())
	messages := []Message{
		{Role: RoleSystem, Content: threadSystemPrompt},
		{Role: RoleUser, Content: prompt},
	}

	var thread string
	err := retry.Do(ctx, w.policy, func(ctx context.Context) error {
		content, err := w.llm.Complete(ctx, messages)
		if err != nil {
			w.log.Warn("token risk analysis attempt failed", "token", timeline.TokenAddress, "err", err)
			return err
		}
		parts, err := SplitThread(content)
		if err != nil {
			w.log.Warn("token risk analysis attempt failed", "token", timeline.TokenAddress, "err", err)
			return err
		}
		thread = strings.Join(DecorateThread(parts), "\n\n")
		return nil
	})
	if err != nil {
		w.log.Error("token risk analysis failed", "token", timeline.TokenAddress, "err", err)
		return fmt.Sprintf("Analysis failed: %s. Please try again later.", err.Error())
	}

	return thread
}

// IsFailedAnalysis reports whether AnalyzeTokenRisk returned its failure text.
func IsFailedAnalysis(text string) bool {
	return strings.HasPrefix(text, "Analysis failed:")
}

// SplitThread splits the reply at lines starting with a section marker.
func SplitThread(content string) ([]string, error) {
	var (
		parts   []string
		current strings.Builder
	)
	for i, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if i > 0 && startsWithMarker(line) {
			parts = append(parts, current.String())
			current.Reset()
		} else if i > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	if len(parts) != ThreadParts {
		return nil, fmt.Errorf("incomplete response: expected %d tweets, received %d", ThreadParts, len(parts))
	}
	return parts, nil
}

func startsWithMarker(line string) bool {
	for _, m := range threadMarkers {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return false
}

// DecorateThread appends keyword emojis and renumbers each part as (n/4).
func DecorateThread(parts []string) []string {
	out := make([]string, len(parts))
	for i, part := range parts {
		p := strings.TrimSpace(part)
		for _, kw := range keywordEmojis {
			p = strings.ReplaceAll(p, kw.key, kw.key+kw.emoji)
		}
		p = partNumber.ReplaceAllString(p, fmt.Sprintf("(%d/%d)", i+1, ThreadParts))
		out[i] = p
	}
	return out
}

// BuildThreadPrompt embeds the timeline into the four part thread template.
func BuildThreadPrompt(t models.TokenTimeline, holding models.CreatorHolding, now time.Time) string {
	var b strings.Builder

	diff := t.LaunchTime.Sub(t.CreatedAt).Hours()
	if t.CreatedAt.IsZero() {
		diff = 0
	}

	walletStatus := "New Wallet (<24h)"
	if !t.CreatorWalletAge.IsNewWallet {
		age := t.CreatorWalletAge.AgeInHours
		if age == 0 && !t.CreatorWalletAge.CreatedAt.IsZero() {
			age = now.Sub(t.CreatorWalletAge.CreatedAt).Hours()
		}
		walletStatus = fmt.Sprintf("Mature Wallet (%.1f hours)", age)
	}

	fmt.Fprintf(&b, `Analyze the risk of tokens on the PumpFun platform and generate a detailed analysis suitable for Twitter threads:

Please generate a 4-tweet thread in the following format:

🚨 Token Monitor Alert (1/4)
Token Name: $%s
Contract Address:

 %s

Creation Time: %s
Raydium Launch: %s
Time Difference: %.2f hours

👨‍💻 Creator Information (2/4)
Address: %s
Wallet Status: %s
Current Holdings: %s tokens
`, t.TokenName, t.TokenAddress, formatTime(t.CreatedAt), formatTime(t.LaunchTime), diff,
		t.Creator, walletStatus, format.Amount(holding.Balance, 2))

	if holding.BalanceUSD > 0 {
		fmt.Fprintf(&b, "≈ $%s\n", format.USD(holding.BalanceUSD))
	}

	b.WriteString("\n📜 Creator History Record (3/4)")
	if len(t.CreatorTokens) > 0 {
		fmt.Fprintf(&b, "\nHistorical Tokens: %d\n", len(t.CreatorTokens))
		fmt.Fprintf(&b, "Success Cases: %d (Market Cap >$100k)\n\nHistorical Token List:", t.SuccessfulTokens)

		tokens := append([]models.CreatorToken(nil), t.CreatorTokens...)
		sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].Timestamp.After(tokens[j].Timestamp) })

		for i, token := range tokens {
			name := token.Name
			if name == "" {
				name = "Unknown"
			}
			marketCap, price := "Unknown", "Unknown"
			if token.MarketCap != nil {
				marketCap = "$" + format.USD(*token.MarketCap)
			}
			if token.Price != nil {
				price = fmt.Sprintf("$%g", *token.Price)
			}
			fmt.Fprintf(&b, "\n%d. %s\n   Address: %s\n   Created: %s\n   Market Cap: %s\n   Price: %s",
				i+1, name, token.TokenAddress, formatTime(token.Timestamp), marketCap, price)
		}
	} else {
		b.WriteString("\nNo historical token records")
	}

	b.WriteString(`

💡 Nyx Risk Analysis (4/4)
Please analyze based on the following factors:
1. Fast creation is normal in Solana ecosystem
2. New wallets need extra attention but don't always indicate risk
3. Low holdings is a positive signal (can't dump)
4. Focus on historical token performance and success cases
5. Comprehensive assessment of risks and opportunities

Please provide:
- Risk Level Assessment (High/Medium/Low)
- Key Risk Points Analysis
- Investment Recommendations
- Special Attention Points

Note:
- Each tweet must be within 280 characters
- Use concise professional language
- Provide specific data support
- Highlight important information
- Third tweet should show all historical token information`)

	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	return t.UTC().Format(timeLayout)
}
