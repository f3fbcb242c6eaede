package botapp

import (
	"fmt"
	"strings"
	"time"

	banssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/bans"
	lookupsvc "github.com/Habibi330/anexo-lookup-bot/internal/services/lookup"
	tokenssvc "github.com/Habibi330/anexo-lookup-bot/internal/services/tokens"
)

const (
	msgHelp = "Commands:\n" +
		"/search <domain> - check if a domain is in the database\n" +
		"/getfile <domain> - download the data file for a domain\n" +
		"/activate <token> - activate an access token\n" +
		"/status - show your current access\n" +
		"/id - show your Telegram id\n" +
		"/support - contact support\n\n" +
		"You can also just send a domain as a plain message."

	msgUnknownCommand    = "Unknown command. Send /help for the list of commands."
	msgSearchUsage       = "Usage: /search <domain>, for example /search example.com"
	msgGetfileUsage      = "Usage: /getfile <domain>, for example /getfile example.com"
	msgActivateUsage     = "Usage: /activate <token>"
	msgInvalidDomain     = "That does not look like a domain. Send something like example.com."
	msgDomainMissing     = "This domain is not in the database yet. Your request has been recorded."
	msgFileTooLarge      = "The file for this domain is too large to send here. Contact support to get it another way."
	msgTokenNotFound     = "Invalid token. Check the code and try again."
	msgTokenUsed         = "This token has already been used. Your account has been temporarily banned for token reuse."
	msgTokenTooShort     = "The token looks too short. Check the code and try again."
	msgNoActiveToken     = "File downloads require an active token. Use /activate <token> or contact support to get one."
	msgQuotaExceeded     = "You have used all free searches for today. Come back tomorrow or activate a token for unlimited access."
	msgInternalError     = "Something went wrong. Try again later."
	msgAdminOnly         = "This command is available to administrators only."
	msgNewTokensUsage    = "Usage: /newtokens <plan_days> <quantity>, plans: 7, 15, 30, quantity 1-50"
	msgTempbanUsage      = "Usage: /tempban <telegram_id> <duration> [reason], for example /tempban 123456 24h spam"
	msgUnbanUsage        = "Usage: /unban <telegram_id>"
	msgNoUnusedTokens    = "There are no unused tokens."
	msgNoActiveBans      = "There are no active bans."
	msgUnbanNotFound     = "No bans found for that id."
	msgFreeTokensDisplay = "Unused tokens:"
)

func welcomeMessage(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello, %s!\n\nSend a domain like example.com to check if it is in the database, or use /help for the full command list.", name)
}

func joinChannelMessage(link string) string {
	if strings.TrimSpace(link) == "" {
		return "To use the bot you need to join our channel first."
	}
	return "To use the bot you need to join our channel first: " + link
}

func bannedMessage(reason string, secondsLeft int64) string {
	return fmt.Sprintf("You are temporarily banned (%s). Time left: %s.", reason, formatSeconds(secondsLeft))
}

func invalidTokenMessage(attemptsLeft int) string {
	return fmt.Sprintf("%s Attempts left before a temporary ban: %d.", msgTokenNotFound, attemptsLeft)
}

func activatedMessage(planDays int, expiresAt time.Time) string {
	return fmt.Sprintf("Token activated. Plan: %d days, valid until %s.", planDays, expiresAt.UTC().Format("2006-01-02 15:04 MST"))
}

func statusActiveMessage(planDays, daysLeft int, expiresAt time.Time) string {
	return fmt.Sprintf("Access: active token.\nPlan: %d days.\nDays left: %d.\nExpires: %s.",
		planDays, daysLeft, expiresAt.UTC().Format("2006-01-02 15:04 MST"))
}

func statusFreeMessage(freePerDay int) string {
	return fmt.Sprintf("Access: free tier, %d searches per day.\nUse /activate <token> for unlimited access.", freePerDay)
}

func statsMessage(stats lookupsvc.Stats) string {
	return fmt.Sprintf("Domain: %s\nRecords: %d\nFile size: %s\n\nUse /getfile %s to download the file.",
		stats.Domain, stats.Lines, formatBytes(stats.SizeBytes), stats.Domain)
}

func statsWithQuotaMessage(stats lookupsvc.Stats, remaining int) string {
	return statsMessage(stats) + fmt.Sprintf("\n\nFree searches left today: %d.", remaining)
}

func supportMessage(contact string) string {
	if strings.TrimSpace(contact) == "" {
		return "Support is not configured."
	}
	return "For help and token purchases contact " + contact + "."
}

func idMessage(userID, chatID int64) string {
	return fmt.Sprintf("Your Telegram id: %d\nChat id: %d", userID, chatID)
}

func tokenBatchMessage(planDays int, codes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Created %d tokens for the %d-day plan:\n", len(codes), planDays)
	for _, code := range codes {
		b.WriteString(code)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func unusedTokensMessage(groups []tokenssvc.PlanGroup) string {
	var b strings.Builder
	b.WriteString(msgFreeTokensDisplay)
	for _, group := range groups {
		fmt.Fprintf(&b, "\n\n%d-day plan (%d):\n", group.PlanDays, len(group.Codes))
		b.WriteString(strings.Join(group.Codes, "\n"))
	}
	return b.String()
}

func banListMessage(active []banssvc.ActiveBan) string {
	var b strings.Builder
	b.WriteString("Active bans:")
	for _, ban := range active {
		fmt.Fprintf(&b, "\n%d - %s, %s left", ban.Subject, ban.Reason, formatSeconds(ban.SecondsLeft))
	}
	return b.String()
}

func formatSeconds(seconds int64) string {
	if seconds <= 0 {
		return "0m"
	}
	d := time.Duration(seconds) * time.Second
	hours := int64(d / time.Hour)
	minutes := int64(d%time.Hour) / int64(time.Minute)
	if hours == 0 {
		if minutes == 0 {
			return "less than a minute"
		}
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func formatBytes(size int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case size >= mb:
		return fmt.Sprintf("%.1f MB", float64(size)/float64(mb))
	case size >= kb:
		return fmt.Sprintf("%.1f KB", float64(size)/float64(kb))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
