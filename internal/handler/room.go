package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-bingo-bot/internal/model"
	"telegram-bingo-bot/internal/room"
	"telegram-bingo-bot/internal/view"
)

// Messenger sends private messages and edits keyboards. *tele.Bot satisfies
// it.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	EditReplyMarkup(msg tele.Editable, markup *tele.ReplyMarkup) (*tele.Message, error)
}

// Registrar makes sure a player has an account. *service.AccountService
// satisfies it.
type Registrar interface {
	EnsureUser(ctx context.Context, telegramID int64, username string) (*model.User, bool, error)
}

// RoomHandler handles room and round commands.
type RoomHandler struct {
	manager   *room.Manager
	tracker   *RoomTracker
	messenger Messenger
	users     Registrar
}

// NewRoomHandler creates a new RoomHandler. users may be nil.
func NewRoomHandler(manager *room.Manager, tracker *RoomTracker, messenger Messenger, users Registrar) *RoomHandler {
	return &RoomHandler{
		manager:   manager,
		tracker:   tracker,
		messenger: messenger,
		users:     users,
	}
}

func (h *RoomHandler) player(ctx context.Context, u *tele.User) room.Player {
	name := senderName(u)
	if h.users != nil {
		if _, _, err := h.users.EnsureUser(ctx, u.ID, name); err != nil {
			log.Warn().Err(err).Int64("user_id", u.ID).Msg("Failed to ensure user")
		}
	}
	return room.Player{ID: u.ID, Name: name}
}

// resolve finds the room a command is about, replying with a hint when
// there is none.
func (h *RoomHandler) resolve(c tele.Context, hint string) (string, []string, bool) {
	code, rest, ok := h.tracker.Resolve(c.Sender().ID, c.Args(), h.manager.Config().CodeLength)
	if !ok {
		_ = c.Reply(usage(hint))
	}
	return code, rest, ok
}

// parseCreateArgs reads "/newroom [max_players] [auto] [private]".
func parseCreateArgs(args []string) (room.CreateOptions, error) {
	var opts room.CreateOptions
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "auto":
			opts.AutoCall = true
		case "private":
			opts.Private = true
		default:
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return opts, fmt.Errorf("invalid argument %q", arg)
			}
			opts.MaxPlayers = n
		}
	}
	return opts, nil
}

// HandleNewRoom handles the /newroom command.
// Format: /newroom [max_players] [auto] [private]
func (h *RoomHandler) HandleNewRoom(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	opts, err := parseCreateArgs(c.Args())
	if err != nil {
		cfg := h.manager.Config()
		return c.Reply(usage(
			"/newroom [players] [auto] [private]",
			fmt.Sprintf("players: %d-%d (default %d)", cfg.MinPlayers, cfg.MaxPlayersLimit, cfg.DefaultMaxPlayers),
			"auto: numbers are called automatically",
		))
	}
	opts.ChatID = groupChatID(c)

	r, err := h.manager.Create(ctx, h.player(ctx, sender), opts)
	if err != nil {
		return replyRoomError(c, "create", err)
	}
	h.tracker.Set(sender.ID, r.Code)
	return nil
}

// HandleJoin handles the /join command.
// Format: /join <code>
func (h *RoomHandler) HandleJoin(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if len(c.Args()) == 0 {
		return c.Reply(usage("/join <code>"))
	}

	code := room.NormalizeCode(c.Args()[0])
	if _, err := h.manager.Join(ctx, code, h.player(ctx, sender)); err != nil {
		return replyRoomError(c, "join", err)
	}
	h.tracker.Set(sender.ID, code)
	return nil
}

// HandleLeave handles the /leave command.
// Format: /leave [code]
func (h *RoomHandler) HandleLeave(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, _, ok := h.resolve(c, "/leave <code>")
	if !ok {
		return nil
	}

	if err := h.manager.Leave(context.Background(), code, sender.ID); err != nil {
		return replyRoomError(c, "leave", err)
	}
	h.tracker.Forget(sender.ID, code)
	return c.Reply(fmt.Sprintf("🚪 You left room %s", code))
}

// HandleCancel handles the /cancel command. Only the host may cancel.
// Format: /cancel [code]
func (h *RoomHandler) HandleCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, _, ok := h.resolve(c, "/cancel <code>")
	if !ok {
		return nil
	}

	if err := h.manager.Cancel(context.Background(), code, sender.ID); err != nil {
		return replyRoomError(c, "cancel", err)
	}
	h.tracker.Forget(sender.ID, code)
	return nil
}

// HandleStartGame handles the /startgame command.
// Format: /startgame [code]
func (h *RoomHandler) HandleStartGame(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, _, ok := h.resolve(c, "/startgame <code>")
	if !ok {
		return nil
	}

	if _, err := h.manager.StartRound(context.Background(), code, sender.ID); err != nil {
		return replyRoomError(c, "start", err)
	}
	return nil
}

// HandleCall handles the /call command. The host draws the next number.
// Format: /call [code]
func (h *RoomHandler) HandleCall(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, _, ok := h.resolve(c, "/call <code>")
	if !ok {
		return nil
	}

	if _, err := h.manager.CallNextAs(context.Background(), code, sender.ID); err != nil {
		return replyRoomError(c, "call", err)
	}
	return nil
}

// HandleMark handles the /mark command.
// Format: /mark [code] <number>
func (h *RoomHandler) HandleMark(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, rest, ok := h.resolve(c, "/mark <code> <number>")
	if !ok {
		return nil
	}
	if len(rest) != 1 {
		return c.Reply(usage("/mark <code> <number>"))
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil {
		return c.Reply("❌ Please enter a valid number")
	}

	res, err := h.manager.Mark(context.Background(), code, sender.ID, n)
	if err != nil {
		return replyRoomError(c, "mark", err)
	}
	return c.Reply(markText(res))
}

func markText(res room.MarkResult) string {
	msg := fmt.Sprintf("✅ Marked %d (row %d, column %d)", res.Number, res.Row+1, res.Col+1)
	if res.AlreadyMarked {
		msg = fmt.Sprintf("☑️ %d is already marked", res.Number)
	}
	if res.Bingo {
		msg += "\n\n🎉 You have a line! Send /bingo to claim it"
	}
	return msg
}

// HandleBingo handles the /bingo command.
// Format: /bingo [code]
func (h *RoomHandler) HandleBingo(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, _, ok := h.resolve(c, "/bingo <code>")
	if !ok {
		return nil
	}

	res, err := h.manager.DeclareBingo(context.Background(), code, sender.ID)
	if err != nil {
		return replyRoomError(c, "bingo", err)
	}
	if res.Settled {
		return c.Reply(settledText(res))
	}
	return nil
}

func settledText(res room.DeclareResult) string {
	return fmt.Sprintf("🏁 This round was already won by %s", res.Winner)
}

// HandleRoom handles the /room command.
// Format: /room [code]
func (h *RoomHandler) HandleRoom(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, _, ok := h.resolve(c, "/room <code>")
	if !ok {
		return nil
	}

	snap, err := h.manager.Snapshot(context.Background(), code)
	if err != nil {
		return replyRoomError(c, "room", err)
	}
	return c.Reply(view.FormatRoom(snap))
}

// HandleCard handles the /card command. The card is always sent privately.
// Format: /card [code]
func (h *RoomHandler) HandleCard(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	code, _, ok := h.resolve(c, "/card <code>")
	if !ok {
		return nil
	}

	member, err := h.member(context.Background(), code, sender.ID)
	if err != nil {
		return replyRoomError(c, "card", err)
	}
	if member.Card == nil {
		return c.Reply("🃏 Cards are dealt when the round starts")
	}

	text := fmt.Sprintf("🃏 Your card for room %s\n<pre>%s</pre>", code, view.FormatCard(*member.Card, member.Mask))
	markup := view.BuildCardKeyboard(code, *member.Card, member.Mask)
	if _, err := h.messenger.Send(sender, text, tele.ModeHTML, markup); err != nil {
		log.Warn().Err(err).Int64("user_id", sender.ID).Msg("Failed to send card")
		return c.Reply("❌ I could not message you. Start a private chat with me first")
	}
	return nil
}

func (h *RoomHandler) member(ctx context.Context, code string, userID int64) (*model.Member, error) {
	snap, err := h.manager.Snapshot(ctx, code)
	if err != nil {
		return nil, err
	}
	for _, m := range snap.Members {
		if m.UserID == userID {
			return m, nil
		}
	}
	return nil, room.ErrNotMember
}

// HandleCallback handles a press on the card keyboard.
func (h *RoomHandler) HandleCallback(c tele.Context, cb view.Callback) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := context.Background()

	switch cb.Action {
	case view.ActionMark:
		res, err := h.manager.Mark(ctx, cb.RoomCode, sender.ID, cb.Number)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: roomErrorText(err)})
		}
		h.refreshKeyboard(ctx, c, cb.RoomCode)
		text := fmt.Sprintf("✅ %d", res.Number)
		if res.Bingo {
			text = "🎉 Line complete! Tap BINGO!"
		}
		return c.Respond(&tele.CallbackResponse{Text: text})

	case view.ActionRefresh:
		h.refreshKeyboard(ctx, c, cb.RoomCode)
		return c.Respond(&tele.CallbackResponse{Text: "🔄"})

	case view.ActionBingo:
		res, err := h.manager.DeclareBingo(ctx, cb.RoomCode, sender.ID)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: roomErrorText(err), ShowAlert: true})
		}
		if res.Settled {
			return c.Respond(&tele.CallbackResponse{Text: settledText(res), ShowAlert: true})
		}
		return c.Respond(&tele.CallbackResponse{Text: "🏆 BINGO!"})
	}

	return c.Respond()
}

func (h *RoomHandler) refreshKeyboard(ctx context.Context, c tele.Context, code string) {
	msg := c.Message()
	if msg == nil {
		return
	}
	member, err := h.member(ctx, code, c.Sender().ID)
	if err != nil || member.Card == nil {
		return
	}
	markup := view.BuildCardKeyboard(code, *member.Card, member.Mask)
	if _, err := h.messenger.EditReplyMarkup(msg, markup); err != nil {
		log.Debug().Err(err).Str("room_code", code).Msg("Failed to refresh card keyboard")
	}
}
