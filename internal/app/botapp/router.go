package botapp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	tginfra "github.com/Habibi330/anexo-lookup-bot/internal/infra/telegram"
	entsvc "github.com/Habibi330/anexo-lookup-bot/internal/services/entitlements"
	lookupsvc "github.com/Habibi330/anexo-lookup-bot/internal/services/lookup"
)

func (a *App) handleCommand(ctx context.Context, update tginfra.CommandUpdate) error {
	command := strings.ToLower(strings.TrimSpace(update.Command))
	args := strings.TrimSpace(update.Args)

	if a.isAdmin(update.UserID) {
		switch command {
		case "newtokens":
			return a.handleNewTokens(ctx, update.ChatID, args)
		case "freetokens":
			return a.handleFreeTokens(ctx, update.ChatID)
		case "tempban":
			return a.handleTempBan(ctx, update.ChatID, args)
		case "unban":
			return a.handleUnban(ctx, update.ChatID, args)
		case "banlist":
			return a.handleBanList(ctx, update.ChatID)
		}
	} else {
		switch command {
		case "newtokens", "freetokens", "tempban", "unban", "banlist":
			return a.reply(ctx, update.ChatID, msgAdminOnly)
		}

		allowed, err := a.gate(ctx, update.ChatID, update.UserID, command)
		if err != nil || !allowed {
			return err
		}
	}

	switch command {
	case "start":
		return a.handleStart(ctx, update)
	case "help":
		return a.reply(ctx, update.ChatID, msgHelp)
	case "id":
		return a.reply(ctx, update.ChatID, idMessage(update.UserID, update.ChatID))
	case "support":
		return a.reply(ctx, update.ChatID, supportMessage(a.cfg.Bot.SupportContact))
	case "status":
		return a.handleStatus(ctx, update)
	case "activate":
		return a.handleActivate(ctx, update, args)
	case "search":
		if args == "" {
			return a.reply(ctx, update.ChatID, msgSearchUsage)
		}
		return a.handleSearch(ctx, update.ChatID, update.UserID, update.Username, update.FirstName, args)
	case "getfile":
		if args == "" {
			return a.reply(ctx, update.ChatID, msgGetfileUsage)
		}
		return a.handleGetFile(ctx, update.ChatID, update.UserID, update.Username, update.FirstName, args)
	default:
		return a.reply(ctx, update.ChatID, msgUnknownCommand)
	}
}

// Plain text is treated as a search query.
func (a *App) handleText(ctx context.Context, update tginfra.TextUpdate) error {
	if !a.isAdmin(update.UserID) {
		allowed, err := a.gate(ctx, update.ChatID, update.UserID, "search")
		if err != nil || !allowed {
			return err
		}
	}
	return a.handleSearch(ctx, update.ChatID, update.UserID, update.Username, update.FirstName, update.Text)
}

// gate runs the ban and flood checks and, except for /start, the channel
// membership check. A false return means a reply was already sent.
func (a *App) gate(ctx context.Context, chatID, userID int64, command string) (bool, error) {
	decision, err := a.access.CheckAndRecordCommand(ctx, userID)
	if err != nil {
		a.logger.Error("access check failed", zap.Int64("user_id", userID), zap.Error(err))
		return false, a.reply(ctx, chatID, msgInternalError)
	}
	if !decision.Allowed {
		return false, a.reply(ctx, chatID, bannedMessage(decision.Reason, decision.SecondsLeft))
	}

	if command == "start" || a.cfg.Bot.RequiredChannel == "" {
		return true, nil
	}

	member, err := a.bot.IsChannelMember(ctx, a.cfg.Bot.RequiredChannel, userID)
	if err != nil {
		a.logger.Warn("channel membership check failed", zap.Int64("user_id", userID), zap.Error(err))
		return true, nil
	}
	if !member {
		return false, a.reply(ctx, chatID, joinChannelMessage(a.cfg.Bot.ChannelLink))
	}

	return true, nil
}

func (a *App) handleStart(ctx context.Context, update tginfra.CommandUpdate) error {
	if _, err := a.userRepo.GetOrCreate(ctx, update.UserID, update.Username, update.FirstName); err != nil {
		a.logger.Error("register user failed", zap.Int64("telegram_id", update.UserID), zap.Error(err))
	}
	return a.reply(ctx, update.ChatID, welcomeMessage(update.FirstName))
}

func (a *App) handleStatus(ctx context.Context, update tginfra.CommandUpdate) error {
	user, err := a.userRepo.GetOrCreate(ctx, update.UserID, update.Username, update.FirstName)
	if err != nil {
		a.logger.Error("register user failed", zap.Int64("telegram_id", update.UserID), zap.Error(err))
		return a.reply(ctx, update.ChatID, msgInternalError)
	}

	ent, err := a.entitlements.Resolve(ctx, user.ID)
	if err != nil {
		a.logger.Error("resolve entitlement failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return a.reply(ctx, update.ChatID, msgInternalError)
	}

	if ent.Kind == entsvc.KindActiveToken {
		return a.reply(ctx, update.ChatID, statusActiveMessage(ent.PlanDays, ent.DaysLeft, ent.ExpiresAt))
	}
	return a.reply(ctx, update.ChatID, statusFreeMessage(a.cfg.Limits.FreeSearchesPerDay))
}

func (a *App) handleActivate(ctx context.Context, update tginfra.CommandUpdate, code string) error {
	if code == "" {
		return a.reply(ctx, update.ChatID, msgActivateUsage)
	}

	user, err := a.userRepo.GetOrCreate(ctx, update.UserID, update.Username, update.FirstName)
	if err != nil {
		a.logger.Error("register user failed", zap.Int64("telegram_id", update.UserID), zap.Error(err))
		return a.reply(ctx, update.ChatID, msgInternalError)
	}

	now := time.Now().UTC()
	activation, err := a.entitlements.ActivateToken(ctx, user.ID, code)
	switch {
	case err == nil:
		a.guard.ResetInvalidTokens(update.UserID)
		return a.reply(ctx, update.ChatID, activatedMessage(activation.PlanDays, activation.ExpiresAt))

	case errors.Is(err, entsvc.ErrValidation):
		return a.reply(ctx, update.ChatID, msgTokenTooShort)

	case errors.Is(err, entsvc.ErrTokenNotFound):
		decision, gerr := a.guard.RecordInvalidToken(ctx, update.UserID, now)
		if gerr != nil {
			a.logger.Error("record invalid token failed", zap.Int64("telegram_id", update.UserID), zap.Error(gerr))
			return a.reply(ctx, update.ChatID, msgTokenNotFound)
		}
		if decision.Banned {
			return a.reply(ctx, update.ChatID, bannedMessage(decision.Reason, int64(decision.BanDuration/time.Second)))
		}
		return a.reply(ctx, update.ChatID, invalidTokenMessage(decision.AttemptsLeft))

	case errors.Is(err, entsvc.ErrTokenUsed):
		decision, gerr := a.guard.RecordReusedToken(ctx, update.UserID, now)
		if gerr != nil {
			a.logger.Error("record reused token failed", zap.Int64("telegram_id", update.UserID), zap.Error(gerr))
			return a.reply(ctx, update.ChatID, msgTokenUsed)
		}
		return a.reply(ctx, update.ChatID, msgTokenUsed+" Time left: "+formatSeconds(int64(decision.BanDuration/time.Second))+".")

	default:
		a.logger.Error("activate token failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return a.reply(ctx, update.ChatID, msgInternalError)
	}
}

func (a *App) handleSearch(ctx context.Context, chatID, telegramID int64, username, firstName, raw string) error {
	domain, err := lookupsvc.NormalizeDomain(raw)
	if err != nil {
		return a.reply(ctx, chatID, msgInvalidDomain)
	}

	user, err := a.userRepo.GetOrCreate(ctx, telegramID, username, firstName)
	if err != nil {
		a.logger.Error("register user failed", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return a.reply(ctx, chatID, msgInternalError)
	}

	ent, err := a.entitlements.Resolve(ctx, user.ID)
	if err != nil {
		a.logger.Error("resolve entitlement failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return a.reply(ctx, chatID, msgInternalError)
	}

	remaining := -1
	if ent.Kind != entsvc.KindActiveToken && !a.isAdmin(telegramID) {
		remaining, err = a.entitlements.ConsumeFreeQuota(ctx, user.ID)
		if err != nil {
			if errors.Is(err, entsvc.ErrQuotaExceeded) {
				return a.reply(ctx, chatID, msgQuotaExceeded)
			}
			a.logger.Error("consume free quota failed", zap.Int64("user_id", user.ID), zap.Error(err))
			return a.reply(ctx, chatID, msgInternalError)
		}
	}

	stats, err := a.lookup.Stats(ctx, user.ID, domain)
	if err != nil {
		switch {
		case errors.Is(err, lookupsvc.ErrValidation):
			return a.reply(ctx, chatID, msgInvalidDomain)
		case errors.Is(err, lookupsvc.ErrDatasetNotFound):
			return a.reply(ctx, chatID, msgDomainMissing)
		default:
			a.logger.Error("dataset stats failed", zap.String("domain", domain), zap.Error(err))
			return a.reply(ctx, chatID, msgInternalError)
		}
	}

	if remaining >= 0 {
		return a.reply(ctx, chatID, statsWithQuotaMessage(stats, remaining))
	}
	return a.reply(ctx, chatID, statsMessage(stats))
}

func (a *App) handleGetFile(ctx context.Context, chatID, telegramID int64, username, firstName, raw string) error {
	user, err := a.userRepo.GetOrCreate(ctx, telegramID, username, firstName)
	if err != nil {
		a.logger.Error("register user failed", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return a.reply(ctx, chatID, msgInternalError)
	}

	if !a.isAdmin(telegramID) {
		ent, err := a.entitlements.Resolve(ctx, user.ID)
		if err != nil {
			a.logger.Error("resolve entitlement failed", zap.Int64("user_id", user.ID), zap.Error(err))
			return a.reply(ctx, chatID, msgInternalError)
		}
		if ent.Kind != entsvc.KindActiveToken {
			return a.reply(ctx, chatID, msgNoActiveToken)
		}
	}

	file, err := a.lookup.Fetch(ctx, user.ID, raw)
	if err != nil {
		switch {
		case errors.Is(err, lookupsvc.ErrValidation):
			return a.reply(ctx, chatID, msgInvalidDomain)
		case errors.Is(err, lookupsvc.ErrDatasetNotFound):
			return a.reply(ctx, chatID, msgDomainMissing)
		case errors.Is(err, lookupsvc.ErrDatasetTooLarge):
			return a.reply(ctx, chatID, msgFileTooLarge)
		default:
			a.logger.Error("dataset fetch failed", zap.Error(err))
			return a.reply(ctx, chatID, msgInternalError)
		}
	}
	defer file.Body.Close()

	caption := fmt.Sprintf("%s (%s)", file.Domain, formatBytes(file.SizeBytes))
	if err := a.bot.SendDocument(ctx, chatID, file.Domain+".txt", file.Body, file.SizeBytes, caption); err != nil {
		a.logger.Error("send document failed", zap.String("domain", file.Domain), zap.Error(err))
		return a.reply(ctx, chatID, msgInternalError)
	}
	return nil
}

func (a *App) handleNewTokens(ctx context.Context, chatID int64, args string) error {
	planDays, qty, err := parseNewTokensArgs(args)
	if err != nil {
		return a.reply(ctx, chatID, msgNewTokensUsage)
	}

	codes, err := a.tokens.CreateBatch(ctx, planDays, qty)
	if err != nil {
		a.logger.Error("create token batch failed", zap.Int("plan_days", planDays), zap.Error(err))
		return a.reply(ctx, chatID, msgNewTokensUsage)
	}
	return a.reply(ctx, chatID, tokenBatchMessage(planDays, codes))
}

func (a *App) handleFreeTokens(ctx context.Context, chatID int64) error {
	groups, err := a.tokens.ListUnused(ctx, 500)
	if err != nil {
		a.logger.Error("list unused tokens failed", zap.Error(err))
		return a.reply(ctx, chatID, msgInternalError)
	}
	if len(groups) == 0 {
		return a.reply(ctx, chatID, msgNoUnusedTokens)
	}
	return a.reply(ctx, chatID, unusedTokensMessage(groups))
}

func (a *App) handleTempBan(ctx context.Context, chatID int64, args string) error {
	subject, duration, reason, err := parseTempBanArgs(args)
	if err != nil {
		return a.reply(ctx, chatID, msgTempbanUsage)
	}

	now := time.Now().UTC()
	if err := a.bans.Ban(ctx, subject, duration, reason, now); err != nil {
		a.logger.Error("manual ban failed", zap.Int64("subject", subject), zap.Error(err))
		return a.reply(ctx, chatID, msgInternalError)
	}
	return a.reply(ctx, chatID, fmt.Sprintf("Banned %d for %s.", subject, formatSeconds(int64(duration/time.Second))))
}

func (a *App) handleUnban(ctx context.Context, chatID int64, args string) error {
	subject, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || subject <= 0 {
		return a.reply(ctx, chatID, msgUnbanUsage)
	}

	removed, err := a.bans.Unban(ctx, subject)
	if err != nil {
		a.logger.Error("unban failed", zap.Int64("subject", subject), zap.Error(err))
		return a.reply(ctx, chatID, msgInternalError)
	}
	if removed == 0 {
		return a.reply(ctx, chatID, msgUnbanNotFound)
	}
	return a.reply(ctx, chatID, fmt.Sprintf("Unbanned %d.", subject))
}

func (a *App) handleBanList(ctx context.Context, chatID int64) error {
	active, err := a.bans.ListActive(ctx, time.Now().UTC())
	if err != nil {
		a.logger.Error("list active bans failed", zap.Error(err))
		return a.reply(ctx, chatID, msgInternalError)
	}
	if len(active) == 0 {
		return a.reply(ctx, chatID, msgNoActiveBans)
	}
	return a.reply(ctx, chatID, banListMessage(active))
}

func (a *App) isAdmin(telegramID int64) bool {
	for _, id := range a.cfg.Bot.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (a *App) reply(ctx context.Context, chatID int64, text string) error {
	if err := a.bot.SendText(ctx, chatID, text); err != nil {
		a.logger.Warn("send reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return nil
}

func parseNewTokensArgs(args string) (int, int, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected plan and quantity")
	}

	planDays, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid plan: %w", err)
	}
	qty, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid quantity: %w", err)
	}
	return planDays, qty, nil
}

func parseTempBanArgs(args string) (int64, time.Duration, string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return 0, 0, "", fmt.Errorf("expected id and duration")
	}

	subject, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || subject <= 0 {
		return 0, 0, "", fmt.Errorf("invalid subject id")
	}

	duration, err := parseBanDuration(fields[1])
	if err != nil {
		return 0, 0, "", err
	}

	reason := strings.Join(fields[2:], " ")
	return subject, duration, reason, nil
}

// parseBanDuration accepts the usual h/m/s forms plus a d suffix for days.
func parseBanDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	duration, err := time.ParseDuration(raw)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return duration, nil
}
