package app

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/TeamChat/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	payslipCmd    = regexp.MustCompile(`^/payslip\s+(\w+)\s+(\d{4})$`)
	applyLeaveCmd = regexp.MustCompile(`^/apply leave\s+(\d+)\s+days? from\s+(\d{4}-\d{2}-\d{2})$`)
	slugSpaces    = regexp.MustCompile(`\s+`)
)

const helpText = "Unknown command. Available commands:\n" +
	"• /leave balance\n" +
	"• /payslip <Month> 2025\n" +
	"• /apply leave <N> days from <YYYY-MM-DD>"

// HRBot answers slash commands with canned replies. It holds no state.
type HRBot struct {
	now  func() time.Time
	intN func(n int) int
}

func NewHRBot() *HRBot {
	return &HRBot{
		now:  func() time.Time { return time.Now().UTC() },
		intN: rand.Intn,
	}
}

// Respond returns the bot reply for text, or false when text is not a command.
func (b *HRBot) Respond(text string, user *domain.User) (domain.Message, bool) {
	if !strings.HasPrefix(text, "/") {
		return domain.Message{}, false
	}
	command := strings.TrimSpace(strings.ToLower(text))

	if command == "/leave balance" {
		casual := b.intN(15) + 5
		earned := b.intN(5) + 1
		return b.reply(fmt.Sprintf("You have %d casual leaves and %d earned leaves left.", casual, earned)), true
	}
	if m := payslipCmd.FindStringSubmatch(command); m != nil {
		// A Caser keeps state between calls and cannot be shared.
		month := cases.Title(language.English).String(m[1])
		slug := slugSpaces.ReplaceAllString(strings.ToLower(user.Name), "-")
		link := fmt.Sprintf("https://intranet.example.com/payslip/%s/%s-%s", slug, month, m[2])
		return b.reply(fmt.Sprintf("Your payslip for %s %s is available at: %s", month, m[2], link)), true
	}
	if m := applyLeaveCmd.FindStringSubmatch(command); m != nil {
		days := m[1]
		if n, err := strconv.Atoi(days); err == nil {
			days = strconv.Itoa(n)
		}
		return b.reply(fmt.Sprintf("Leave request submitted: %s day(s) starting from %s. Your request will be reviewed by HR.", days, m[2])), true
	}
	return b.reply(helpText), true
}

func (b *HRBot) reply(text string) domain.Message {
	return domain.Message{User: domain.BotUser, Role: domain.RoleSystem, Text: text, CreatedAt: b.now()}
}
