package tgbot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/config"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/data/session"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/model/tgCallback"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/transport/telegram"
	customMW "github.com/marinsarbulescu/stock-portfolio-tracker-sub001/internal/transport/telegram/middleware"
	"github.com/marinsarbulescu/stock-portfolio-tracker-sub001/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) *TGBot {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		slog.Error("error while tele.NewBot", slog.String("err", err.Error()))
		panic(err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/stocks", b.ctrl.Stocks)
	b.bot.Handle("/stock", b.ctrl.ShowStockCommand)
	b.bot.Handle("/addstock", b.ctrl.InitAddStock)
	b.bot.Handle("/portfolio", b.ctrl.Portfolio)
	b.bot.Handle("/report", b.ctrl.Report)

	// Free text is routed by the chat's session state.
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := b.session.GetSession(ctx, strconv.FormatInt(c.Chat().ID, 10))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return c.Send("start with one of the commands, see /start")
			}
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send("something went wrong, try again later")
		}

		c.Set("session", chatSession)

		switch chatSession.State {
		case model.ExpectingNewStockParams:
			return b.ctrl.ProcessAddStock(c)
		case model.ExpectingBuyParams:
			return b.ctrl.ProcessBuy(c)
		case model.ExpectingSellParams:
			return b.ctrl.ProcessSell(c)
		case model.ExpectingDividendAmount:
			return b.ctrl.ProcessDividend(c)
		case model.ExpectingLendingAmount:
			return b.ctrl.ProcessLending(c)
		case model.ExpectingSplitMultiplier:
			return b.ctrl.ProcessSplit(c)
		default:
			return c.Send("start with one of the commands, see /start")
		}
	})

	// Inline buttons carry "verb|payload" callback data.
	b.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		defer func() { _ = c.Respond() }()

		data := strings.TrimPrefix(c.Callback().Data, "\f")
		verb, payload, _ := strings.Cut(data, "|")
		c.Set("cbData", payload)

		switch verb {
		case tgCallback.Stock:
			return b.ctrl.ShowStock(c)
		case tgCallback.StocksPage:
			return b.ctrl.StocksPage(c)
		case tgCallback.Buy:
			return b.ctrl.InitBuy(c)
		case tgCallback.SellLots:
			return b.ctrl.ShowLots(c)
		case tgCallback.Sell:
			return b.ctrl.InitSell(c)
		case tgCallback.Dividend:
			return b.ctrl.InitDividend(c)
		case tgCallback.Lending:
			return b.ctrl.InitLending(c)
		case tgCallback.Split:
			return b.ctrl.InitSplit(c)
		case tgCallback.DeleteLot:
			return b.ctrl.DeleteLot(c)
		default:
			slog.Warn("unknown callback verb", slog.String("verb", verb))
			return nil
		}
	})
}
