package main

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/davecgh/go-spew/spew"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type interactionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate)

// modalPrefillTimeout bounds every lookup made before a modal is shown. Discord
// drops an interaction that is not answered within three seconds.
const modalPrefillTimeout = 2500 * time.Millisecond

// Bot connects the Discord interactions to the registration workflow and the
// account operations.
type Bot struct {
	config   *Config
	sessions *SessionRegistry
	workflow *Workflow
	accounts      *Accounts
	subscriptions *Subscriptions
	guides        *GuideFetcher
	messages      Messages

	prefillTimeout time.Duration
}

func NewBot(config *Config, sessions *SessionRegistry, workflow *Workflow, accounts *Accounts, subscriptions *Subscriptions, guides *GuideFetcher, messages Messages) *Bot {
	return &Bot{
		config:        config,
		sessions:      sessions,
		workflow:      workflow,
		accounts:      accounts,
		subscriptions: subscriptions,
		guides:        guides,
		messages:      messages,

		prefillTimeout: modalPrefillTimeout,
	}
}

var (
	AgreementOption = &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Name:        "agree",
		Description: "I accept the terms of service and the privacy policy",
		Required:    true,
	}
	TrialOption = &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Name:        "trial",
		Description: "Start with a free trial",
		Required:    false,
	}
	LeadOption = &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "lead",
		Description: "The lead identifier from your invitation link, if any",
		Required:    false,
	}
	RegisterCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "register",
		Description: "Create a streaming account",
		Options:     []*discordgo.ApplicationCommandOption{AgreementOption, TrialOption, LeadOption},
	}

	LoginCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "login",
		Description: "Log in to your streaming account",
	}
	LogoutCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "logout",
		Description: "Log out of your streaming account",
	}

	EmailOption = &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "email",
		Description: "The email address of your account",
		Required:    true,
	}
	ForgotPasswordCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "forgot-password",
		Description: "Receive a new password by email",
		Options:     []*discordgo.ApplicationCommandOption{EmailOption},
	}
	ChangePasswordCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "change-password",
		Description: "Change the password of your account",
	}

	SubscriptionsCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "subscriptions",
		Description: "Show your subscription and buy a package",
	}

	GuideOption = &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "device",
		Description: "The app or device to set up",
		Required:    true,
		Choices: lo.Map(GuideTypes, func(guide GuideType, _ int) *discordgo.ApplicationCommandOptionChoice {
			return &discordgo.ApplicationCommandOptionChoice{Name: guide.Name(), Value: string(guide)}
		}),
	}
	GuideCommandDefinition = &discordgo.ApplicationCommand{
		Name:        "guide",
		Description: "Show the setup guide for an app or device",
		Options:     []*discordgo.ApplicationCommandOption{GuideOption},
	}
)

// Commands returns the slash commands the bot registers.
func (b *Bot) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		RegisterCommandDefinition,
		LoginCommandDefinition,
		LogoutCommandDefinition,
		ForgotPasswordCommandDefinition,
		ChangePasswordCommandDefinition,
		SubscriptionsCommandDefinition,
		GuideCommandDefinition,
	}
}

func (b *Bot) commandHandlers() map[string]interactionHandler {
	return map[string]interactionHandler{
		RegisterCommandDefinition.Name:       b.RegisterCommandHandler,
		LoginCommandDefinition.Name:          b.LoginCommandHandler,
		LogoutCommandDefinition.Name:         b.LogoutCommandHandler,
		ForgotPasswordCommandDefinition.Name: b.ForgotPasswordCommandHandler,
		ChangePasswordCommandDefinition.Name: b.ChangePasswordCommandHandler,
		SubscriptionsCommandDefinition.Name:  b.SubscriptionsCommandHandler,
		GuideCommandDefinition.Name:          b.GuideCommandHandler,
	}
}

func (b *Bot) componentHandlers() map[string]interactionHandler {
	return map[string]interactionHandler{
		buttonContact: b.ContactButtonHandler,
		buttonEdit:    b.EditButtonHandler,
		buttonVerify:  b.VerifyButtonHandler,
		selectPackage: b.PackageSelectHandler,
		selectCoin:    b.CoinSelectHandler,
	}
}

func (b *Bot) modalHandlers() map[string]interactionHandler {
	return map[string]interactionHandler{
		modalPersonal:       b.PersonalModalHandler,
		modalContact:        b.ContactModalHandler,
		modalPhoneCode:      b.PhoneCodeModalHandler,
		modalLogin:          b.LoginModalHandler,
		modalChangePassword: b.ChangePasswordModalHandler,
	}
}

// HandleInteraction dispatches an interaction by its type and identifier.
func (b *Bot) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var (
		handler interactionHandler
		ok      bool
		key     string
	)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		key = i.ApplicationCommandData().Name
		handler, ok = b.commandHandlers()[key]
	case discordgo.InteractionMessageComponent:
		key = i.MessageComponentData().CustomID
		handler, ok = b.componentHandlers()[key]
	case discordgo.InteractionModalSubmit:
		key = i.ModalSubmitData().CustomID
		handler, ok = b.modalHandlers()[key]
	}

	if !ok {
		logrus.WithFields(logrus.Fields{"type": i.Type.String(), "key": key}).Warn("Unhandled interaction")
		return
	}
	handler(s, i)
}

// interactionUserID returns the invoking user both in guilds and in direct
// messages.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func interactionLogger(i *discordgo.InteractionCreate, name string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"interaction": i.ID,
		"user":        interactionUserID(i),
		"command":     name,
	})
}

// stepContext bounds a workflow step. A step makes at most a challenge call
// and two backend calls.
func (b *Bot) stepContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*b.config.BackendTimeout+5*time.Second)
}

func findOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	return lo.Find(options, func(option *discordgo.ApplicationCommandInteractionDataOption) bool {
		return option.Name == name
	})
}

func (b *Bot) RegisterCommandHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log := interactionLogger(i, RegisterCommandDefinition.Name)

	session, form, ok := b.startRegistration(interactionUserID(i), i.ApplicationCommandData().Options)
	if !ok {
		b.respondAlreadyLoggedIn(s, i, language(session))
		return
	}

	trial := session.Store.Snapshot().IsTrial
	log.WithFields(logrus.Fields{"trial": trial, "agreement": form.Agreement}).Debug("Starting registration")

	response := PersonalModal(form, trial)
	if err := s.InteractionRespond(i.Interaction, response); err != nil {
		log.WithField("dump", spew.Sdump(response)).Error(err)
	}
}

// startRegistration prepares the form /register opens. Every lookup it makes
// shares one prefill deadline. It returns false with the previous session when
// the user is already logged in.
func (b *Bot) startRegistration(userID string, options []*discordgo.ApplicationCommandInteractionDataOption) (*Session, FormValues, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), b.prefillTimeout)
	defer cancel()

	previous := b.sessions.GetOrStart(userID)
	if b.accounts.LoggedIn(ctx, previous) {
		return previous, FormValues{}, false
	}

	// Every /register starts over, the way reloading the form page does.
	session := b.sessions.Start(userID)

	if option, ok := findOption(options, TrialOption.Name); ok && option.BoolValue() {
		session.Store.SetTrial()
	}

	form := FormFromStore(session.Store.Snapshot(), b.sessions.Country())
	if option, ok := findOption(options, LeadOption.Name); ok && option.StringValue() != "" {
		// A failed lookup still opens the form; the error notice is held on
		// the session for the next message.
		form, _ = b.workflow.ResolveLead(ctx, session, option.StringValue(), b.sessions.Country())
	}

	if option, ok := findOption(options, AgreementOption.Name); ok {
		form.Agreement = option.BoolValue()
	}
	session.UpdateDraft(func(draft *FormValues) { *draft = form })
	return session, form, true
}

// respondAlreadyLoggedIn points a logged-in user to the site instead of the
// registration form.
func (b *Bot) respondAlreadyLoggedIn(s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	ui := newInteractionSurface(b.config.SiteURL, b.messages, lang)
	ui.Navigate(DestinationStartWatching)
	button, ok := ui.destinationButton()
	if !ok {
		respondEphemeral(s, i, b.messages.Get(lang, MsgAlreadyLoggedIn))
		return
	}
	respondEphemeral(s, i, b.messages.Get(lang, MsgAlreadyLoggedIn), button)
}

func (b *Bot) LoginCommandHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, LoginModal()); err != nil {
		interactionLogger(i, LoginCommandDefinition.Name).WithError(err).Error("Failed to show login form")
	}
}

func (b *Bot) LogoutCommandHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.sessions.GetOrStart(interactionUserID(i))
	if err := deferEphemeral(s, i); err != nil {
		interactionLogger(i, LogoutCommandDefinition.Name).WithError(err).Error("Failed to acknowledge interaction")
		return
	}

	ctx, cancel := b.stepContext()
	defer cancel()

	ui := b.surface(session)
	_ = b.accounts.Logout(ctx, session, ui)
	ui.Flush(s, i, nil)
}

func (b *Bot) ForgotPasswordCommandHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.sessions.GetOrStart(interactionUserID(i))
	email := ""
	if option, ok := findOption(i.ApplicationCommandData().Options, EmailOption.Name); ok {
		email = option.StringValue()
	}

	if err := deferEphemeral(s, i); err != nil {
		interactionLogger(i, ForgotPasswordCommandDefinition.Name).WithError(err).Error("Failed to acknowledge interaction")
		return
	}

	ctx, cancel := b.stepContext()
	defer cancel()

	ui := b.surface(session)
	err := b.accounts.ForgotPassword(ctx, session, ui, email)
	ui.Flush(s, i, fieldErrorsOf(err))
}

func (b *Bot) ChangePasswordCommandHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, ChangePasswordModal()); err != nil {
		interactionLogger(i, ChangePasswordCommandDefinition.Name).WithError(err).Error("Failed to show change password form")
	}
}

func (b *Bot) GuideCommandHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log := interactionLogger(i, GuideCommandDefinition.Name)
	lang := b.sessions.GetOrStart(interactionUserID(i)).Store.Snapshot().Language

	value := ""
	if option, ok := findOption(i.ApplicationCommandData().Options, GuideOption.Name); ok {
		value = option.StringValue()
	}
	guideType, err := ParseGuideType(value)
	if err != nil {
		HandleError(s, i, err, b.messages.Get(lang, MsgUnknownGuide))
		return
	}

	if err := deferEphemeral(s, i); err != nil {
		log.WithError(err).Error("Failed to acknowledge interaction")
		return
	}

	ctx, cancel := b.stepContext()
	defer cancel()

	guide, err := b.guides.Fetch(ctx, guideType)
	if err != nil {
		log.WithError(err).Error("Failed to fetch guide")
		ui := newInteractionSurface(b.config.SiteURL, b.messages, lang)
		ui.Notify(Notice{Variant: NoticeDestructive, Message: b.messages.Get(lang, MsgGenericError)})
		ui.Flush(s, i, nil)
		return
	}

	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{GuideEmbed(guide)},
		Flags:  discordgo.MessageFlagsEphemeral,
	}
	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		log.WithError(err).WithField("dump", spew.Sdump(params)).Error("Failed to send guide")
	}
}

func (b *Bot) SubscriptionsCommandHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	session := b.sessions.GetOrStart(interactionUserID(i))
	if err := deferEphemeral(s, i); err != nil {
		interactionLogger(i, SubscriptionsCommandDefinition.Name).WithError(err).Error("Failed to acknowledge interaction")
		return
	}

	ctx, cancel := b.stepContext()
	defer cancel()

	ui := b.surface(session)
	b.showSubscriptions(ctx, session, ui)
	ui.Flush(s, i, nil)
}

// showSubscriptions renders the overview and the packages on sale into ui.
func (b *Bot) showSubscriptions(ctx context.Context, session *Session, ui *interactionSurface) {
	overview, err := b.subscriptions.Overview(ctx, session, ui)
	if err != nil {
		return
	}
	ui.Attach(SubscriptionEmbed(overview, b.messages, language(session)))
	if menu, ok := PackageMenu(overview.Brand.Packages); ok {
		ui.Menu(menu)
	}
}

func (b *Bot) PackageSelectHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log := interactionLogger(i, selectPackage)
	session := b.sessions.GetOrStart(interactionUserID(i))
	values := i.MessageComponentData().Values
	if err := deferEphemeral(s, i); err != nil {
		log.WithError(err).Error("Failed to acknowledge interaction")
		return
	}

	ctx, cancel := b.stepContext()
	defer cancel()

	ui := b.surface(session)
	if len(values) == 1 {
		b.checkout(ctx, session, ui, values[0])
	} else {
		log.WithField("values", values).Warn("Unexpected package selection")
		ui.Notify(Notice{Variant: NoticeDestructive, Message: b.messages.Get(language(session), MsgUnknownPackage)})
	}
	ui.Flush(s, i, nil)
}

// checkout buys packageID and renders the way to pay into ui.
func (b *Bot) checkout(ctx context.Context, session *Session, ui *interactionSurface, packageID string) {
	checkout, err := b.subscriptions.Purchase(ctx, session, ui, packageID)
	if err != nil || checkout.Processing {
		return
	}
	if checkout.PaymentURL != "" {
		ui.Link("Pay now", checkout.PaymentURL)
	}
	if menu, ok := CoinMenu(checkout.TransactionID, checkout.Coins); ok {
		ui.Menu(menu)
	}
}

func (b *Bot) CoinSelectHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log := interactionLogger(i, selectCoin)
	session := b.sessions.GetOrStart(interactionUserID(i))
	values := i.MessageComponentData().Values
	if err := deferEphemeral(s, i); err != nil {
		log.WithError(err).Error("Failed to acknowledge interaction")
		return
	}

	ctx, cancel := b.stepContext()
	defer cancel()

	ui := b.surface(session)
	var transactionID, coin string
	ok := len(values) == 1
	if ok {
		transactionID, coin, ok = parseCoinChoice(values[0])
	}
	if ok {
		_, _ = b.subscriptions.CryptoAddress(ctx, session, ui, transactionID, coin)
	} else {
		log.WithField("values", values).Warn("Unexpected coin selection")
		ui.Notify(Notice{Variant: NoticeDestructive, Message: b.messages.Get(language(session), MsgGenericError)})
	}
	ui.Flush(s, i, nil)
}
