package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/pokeloco/pokebot-backend/internal/models"
)

// handleBuilder walks the step-by-step bowl assembly.
func (c *ConversationService) handleBuilder(ctx context.Context, session *models.Session, text, buttonID string) {
	if isCancel(text) {
		session.Mode = models.ModeNormal
		session.Builder = nil
		c.reply(session, "Sin problema, cancelé tu poke 👍 Escribe *armar* cuando quieras empezar de nuevo.")
		return
	}

	builder := session.Builder
	if builder == nil {
		builder = models.NewBuilderState()
		session.Builder = builder
	}

	switch builder.Step {
	case models.StepSize:
		id, ok := c.parseSingle(ctx, text, buttonID, sizeOptions())
		if !ok {
			c.replyButtons(session, "No te entendí 😅 ¿De qué tamaño lo quieres?", sizeButtons())
			return
		}
		builder.SizeID = id
		builder.Step = models.StepBase
		c.reply(session, "🍚 ¿Qué base quieres?\n\n"+optionList(models.Bases))

	case models.StepBase:
		id, ok := c.parseSingle(ctx, text, buttonID, models.Bases)
		if !ok {
			c.reply(session, "Elige una base de la lista, por número o nombre:\n\n"+optionList(models.Bases))
			return
		}
		builder.BaseID = id
		builder.Step = models.StepProteins
		size, _ := models.FindSize(builder.SizeID)
		c.reply(session, fmt.Sprintf("🐟 ¿Qué proteína(s)? Tu tamaño incluye hasta %d.\n\n%s\nCuando termines escribe *listo*.",
			size.MaxProteins, optionList(models.Proteins)))

	case models.StepProteins:
		size, _ := models.FindSize(builder.SizeID)
		if isDone(text) {
			if len(builder.ProteinIDs) == 0 {
				c.reply(session, "Elige al menos una proteína 🙏\n\n"+optionList(models.Proteins))
				return
			}
			c.advanceToToppings(session, builder)
			return
		}
		ids := c.parseMulti(ctx, text, buttonID, models.Proteins)
		if len(ids) == 0 {
			c.reply(session, "No encontré esa proteína 😅 Elige de la lista:\n\n"+optionList(models.Proteins))
			return
		}
		builder.ProteinIDs = appendUnique(builder.ProteinIDs, ids, size.MaxProteins)
		if len(builder.ProteinIDs) >= size.MaxProteins {
			c.advanceToToppings(session, builder)
			return
		}
		c.reply(session, fmt.Sprintf("Llevas: %s. Puedes agregar %d más o escribe *listo*.",
			namesFor(models.Proteins, builder.ProteinIDs), size.MaxProteins-len(builder.ProteinIDs)))

	case models.StepToppings:
		size, _ := models.FindSize(builder.SizeID)
		if isDone(text) || containsAny(strings.ToLower(text), "sin toppings", "ninguno", "nada") {
			c.advanceToSauce(session, builder)
			return
		}
		ids := c.parseMulti(ctx, text, buttonID, models.Toppings)
		if len(ids) == 0 {
			c.reply(session, "No encontré ese topping 😅 Elige de la lista o escribe *listo*:\n\n"+optionList(models.Toppings))
			return
		}
		builder.ToppingIDs = appendUnique(builder.ToppingIDs, ids, size.MaxToppings)
		if len(builder.ToppingIDs) >= size.MaxToppings {
			c.advanceToSauce(session, builder)
			return
		}
		c.reply(session, fmt.Sprintf("Llevas: %s. Puedes agregar %d más o escribe *listo*.",
			namesFor(models.Toppings, builder.ToppingIDs), size.MaxToppings-len(builder.ToppingIDs)))

	case models.StepSauce:
		id, ok := c.parseSingle(ctx, text, buttonID, models.Sauces)
		if !ok {
			c.reply(session, "¿Con qué salsa? Elige de la lista:\n\n"+optionList(models.Sauces))
			return
		}
		builder.SauceID = id
		c.finishBuilder(session, builder)

	default:
		// Unknown step, restart the builder rather than wedge the session.
		log.Printf("⚠️  Unknown builder step %q for %s, restarting", builder.Step, session.Phone)
		session.Builder = models.NewBuilderState()
		c.replyButtons(session, "Empecemos de nuevo 🙌 ¿De qué tamaño lo quieres?", sizeButtons())
	}
}

func (c *ConversationService) advanceToToppings(session *models.Session, builder *models.BuilderState) {
	builder.Step = models.StepToppings
	size, _ := models.FindSize(builder.SizeID)
	c.reply(session, fmt.Sprintf("🥑 ¿Toppings? Puedes elegir hasta %d.\n\n%s\nEscribe *listo* para continuar.",
		size.MaxToppings, optionList(models.Toppings)))
}

func (c *ConversationService) advanceToSauce(session *models.Session, builder *models.BuilderState) {
	builder.Step = models.StepSauce
	c.reply(session, "🥢 Último paso: ¿qué salsa?\n\n"+optionList(models.Sauces))
}

// finishBuilder prices the bowl, moves the session to CHECKOUT and asks for
// the delivery method.
func (c *ConversationService) finishBuilder(session *models.Session, builder *models.BuilderState) {
	item := buildBowlItem(builder)

	session.Mode = models.ModeCheckout
	session.Builder = nil
	session.Checkout = &models.CheckoutState{
		Stage: models.CheckoutStageMethod,
		Items: []models.OrderItem{item},
	}

	c.replyButtons(session,
		fmt.Sprintf("¡Tu poke quedó así! 🤩\n\n%s\nTotal: $%.0f\n\n¿Cómo quieres recibirlo?", item.Notes, item.Price),
		deliveryButtons())
}

// handleCheckout collects delivery details and the final confirmation.
func (c *ConversationService) handleCheckout(ctx context.Context, session *models.Session, text, buttonID string) {
	if isCancel(text) || buttonID == "confirm:no" {
		session.Mode = models.ModeNormal
		session.Checkout = nil
		c.reply(session, "Pedido cancelado 👍 Aquí estamos cuando se te antoje un poke.")
		return
	}

	checkout := session.Checkout
	if checkout == nil || len(checkout.Items) == 0 {
		session.Mode = models.ModeNormal
		session.Checkout = nil
		c.sendGreeting(session)
		return
	}

	lower := strings.ToLower(text)

	switch checkout.Stage {
	case models.CheckoutStageMethod:
		switch {
		case buttonID == "method:delivery" || containsAny(lower, "domicilio", "delivery", "enviar", "envío", "envio"):
			checkout.DeliveryMethod = models.DeliveryMethodDelivery
			checkout.Stage = models.CheckoutStageAddress
			if session.Profile.LastAddress != "" {
				c.replyButtons(session,
					fmt.Sprintf("¿Lo enviamos a tu dirección de siempre?\n📍 %s", session.Profile.LastAddress),
					[]Button{
						{ID: "addr:last", Title: "Sí, ahí mismo"},
						{ID: "addr:new", Title: "Otra dirección"},
					})
				return
			}
			c.reply(session, "📍 ¿A qué dirección lo enviamos?")
		case buttonID == "method:pickup" || containsAny(lower, "recoger", "pickup", "paso por", "sucursal"):
			checkout.DeliveryMethod = models.DeliveryMethodPickup
			checkout.Stage = models.CheckoutStagePickup
			c.reply(session, "🏪 ¿A qué hora pasas por tu pedido?")
		default:
			c.replyButtons(session, "¿Cómo quieres recibir tu pedido?", deliveryButtons())
		}

	case models.CheckoutStageAddress:
		switch {
		case buttonID == "addr:last":
			checkout.Address = session.Profile.LastAddress
			c.askConfirmation(session, checkout)
		case buttonID == "addr:new":
			c.reply(session, "📍 ¿A qué dirección lo enviamos?")
		case len(strings.TrimSpace(text)) >= 5:
			checkout.Address = strings.TrimSpace(text)
			session.Profile.LastAddress = checkout.Address
			c.askConfirmation(session, checkout)
		default:
			c.reply(session, "Necesito una dirección completa para el repartidor 🙏")
		}

	case models.CheckoutStagePickup:
		if strings.TrimSpace(text) == "" {
			c.reply(session, "¿A qué hora pasas? Por ejemplo: *2:30 pm*")
			return
		}
		checkout.PickupTime = strings.TrimSpace(text)
		c.askConfirmation(session, checkout)

	case models.CheckoutStageConfirm:
		if buttonID == "confirm:yes" || containsAny(lower, "sí", "si", "confirmo", "va", "sale", "ok", "dale") {
			c.placeOrder(session, checkout)
			return
		}
		c.replyButtons(session, "¿Confirmamos tu pedido?", confirmButtons())

	default:
		checkout.Stage = models.CheckoutStageMethod
		c.replyButtons(session, "¿Cómo quieres recibir tu pedido?", deliveryButtons())
	}
}

func (c *ConversationService) askConfirmation(session *models.Session, checkout *models.CheckoutState) {
	checkout.Stage = models.CheckoutStageConfirm

	var sb strings.Builder
	sb.WriteString("📝 *Resumen de tu pedido*\n\n")
	for _, item := range checkout.Items {
		fmt.Fprintf(&sb, "• %dx %s — $%.0f\n", item.Quantity, item.Name, item.Price*float64(item.Quantity))
	}
	fmt.Fprintf(&sb, "\nTotal: $%.0f\n", models.ItemsTotal(checkout.Items))
	if checkout.DeliveryMethod == models.DeliveryMethodDelivery {
		fmt.Fprintf(&sb, "🛵 A domicilio: %s\n", checkout.Address)
	} else {
		fmt.Fprintf(&sb, "🏪 Recoger a las: %s\n", checkout.PickupTime)
	}
	sb.WriteString("\n¿Confirmamos?")

	c.replyButtons(session, sb.String(), confirmButtons())
}

// placeOrder persists the order, notifies the operator console and resets the
// session to NORMAL.
func (c *ConversationService) placeOrder(session *models.Session, checkout *models.CheckoutState) {
	order := &models.Order{
		CustomerPhone:  session.Phone,
		CustomerName:   session.Profile.Name,
		Items:          checkout.Items,
		DeliveryMethod: checkout.DeliveryMethod,
		Address:        checkout.Address,
		PickupTime:     checkout.PickupTime,
		Status:         models.OrderStatusPending,
		Source:         models.OrderSourceBot,
	}

	created, err := c.store.CreateOrder(order)
	if err != nil {
		log.Printf("❌ Failed to create order for %s: %v", session.Phone, err)
		c.reply(session, "Algo salió mal guardando tu pedido 😔 Intenta de nuevo en un momento.")
		return
	}

	session.Mode = models.ModeNormal
	session.Checkout = nil

	c.reply(session, fmt.Sprintf("🎉 ¡Pedido recibido! Tu número es #%s.\nTe avisamos en cuanto lo confirme la cocina.", shortID(created.ID)))

	if c.notifier != nil {
		c.notifier.NotifyNewOrder(created)
	}
}

// Selection parsing: deterministic matching first (index or name), then the
// LLM interpreter as fallback. LLM output is already filtered to the
// candidate set by the interpreter itself.

func (c *ConversationService) parseSingle(ctx context.Context, text, buttonID string, options []models.Option) (int, bool) {
	if id, ok := buttonOptionID(buttonID, options); ok {
		return id, true
	}
	if ids := matchOptions(text, options); len(ids) > 0 {
		return ids[0], true
	}
	if c.intent != nil {
		if ids := c.intent.InterpretSelection(ctx, text, options); len(ids) > 0 {
			return ids[0], true
		}
	}
	return 0, false
}

func (c *ConversationService) parseMulti(ctx context.Context, text, buttonID string, options []models.Option) []int {
	if id, ok := buttonOptionID(buttonID, options); ok {
		return []int{id}
	}
	if ids := matchOptions(text, options); len(ids) > 0 {
		return ids
	}
	if c.intent != nil {
		return c.intent.InterpretSelection(ctx, text, options)
	}
	return nil
}

func buttonOptionID(buttonID string, options []models.Option) (int, bool) {
	if !strings.HasPrefix(buttonID, "opt:") {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(buttonID, "opt:"))
	if err != nil {
		return 0, false
	}
	if _, ok := models.FindOption(options, id); !ok {
		return 0, false
	}
	return id, true
}

// matchOptions resolves list indices ("1", "2") and option names (accent
// insensitive) mentioned in free text.
func matchOptions(text string, options []models.Option) []int {
	folded := foldText(text)
	if folded == "" {
		return nil
	}

	var ids []int
	seen := make(map[int]bool)

	for _, token := range strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.'
	}) {
		if idx, err := strconv.Atoi(token); err == nil && idx >= 1 && idx <= len(options) {
			id := options[idx-1].ID
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	for _, o := range options {
		if seen[o.ID] {
			continue
		}
		if strings.Contains(folded, foldText(o.Name)) {
			seen[o.ID] = true
			ids = append(ids, o.ID)
		}
	}
	return ids
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func foldText(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}

func sizeOptions() []models.Option {
	options := make([]models.Option, 0, len(models.Sizes))
	for _, s := range models.Sizes {
		options = append(options, s.Option)
	}
	return options
}

func optionList(options []models.Option) string {
	var sb strings.Builder
	for i, o := range options {
		if o.Price > 0 {
			fmt.Fprintf(&sb, "%d. %s (+$%.0f)\n", i+1, o.Name, o.Price)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, o.Name)
		}
	}
	return sb.String()
}

func buildBowlItem(builder *models.BuilderState) models.OrderItem {
	size, _ := models.FindSize(builder.SizeID)
	base, _ := models.FindOption(models.Bases, builder.BaseID)
	sauce, _ := models.FindOption(models.Sauces, builder.SauceID)

	price := size.Price + base.Price + sauce.Price

	var details strings.Builder
	fmt.Fprintf(&details, "Base: %s\n", base.Name)
	fmt.Fprintf(&details, "Proteína: %s\n", namesFor(models.Proteins, builder.ProteinIDs))
	if len(builder.ToppingIDs) > 0 {
		fmt.Fprintf(&details, "Toppings: %s\n", namesFor(models.Toppings, builder.ToppingIDs))
	}
	fmt.Fprintf(&details, "Salsa: %s", sauce.Name)

	for _, id := range builder.ToppingIDs {
		if topping, ok := models.FindOption(models.Toppings, id); ok {
			price += topping.Price
		}
	}

	return models.OrderItem{
		Name:     fmt.Sprintf("Poke %s personalizado", size.Name),
		Price:    price,
		Quantity: 1,
		Notes:    details.String(),
	}
}

func namesFor(options []models.Option, ids []int) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if o, ok := models.FindOption(options, id); ok {
			names = append(names, o.Name)
		}
	}
	return strings.Join(names, ", ")
}

func appendUnique(existing, incoming []int, max int) []int {
	seen := make(map[int]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	for _, id := range incoming {
		if len(existing) >= max {
			break
		}
		if !seen[id] {
			seen[id] = true
			existing = append(existing, id)
		}
	}
	return existing
}

func confirmButtons() []Button {
	return []Button{
		{ID: "confirm:yes", Title: "✅ Confirmar"},
		{ID: "confirm:no", Title: "❌ Cancelar"},
	}
}

func isCancel(text string) bool {
	return containsAny(strings.ToLower(text), "cancelar", "cancel", "ya no", "olvídalo", "olvidalo", "salir")
}

func isDone(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return lower == "listo" || lower == "ya" || lower == "continuar" || lower == "siguiente"
}
