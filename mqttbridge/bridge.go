package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/pda/implcaps/projector/number"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

const SetQueueSize = 16
const SetTimeout = 2 * time.Minute

// Gateway is the projector gateway being bridged.
type Gateway interface {
	Self() da.Device
	Numbers() []*number.Implementation
	ProductInformation() capabilities.ProductInformation
	SetValue(ctx context.Context, command string, value float64) error
	ReadEvent(ctx context.Context) (any, error)
}

// StatusTopic is the topic carrying the availability of the bridge itself, it is also used as the MQTT will.
func StatusTopic(prefix string, deviceID string) string {
	return fmt.Sprintf("%s/pda/%s/status", prefix, deviceID)
}

func numberTopic(prefix string, uniqueID string, leaf string) string {
	return fmt.Sprintf("%s/number/%s/%s", prefix, uniqueID, leaf)
}

type setCommand struct {
	command string
	value   float64
}

func New(c Client, gw Gateway, prefix string, qos byte) *Bridge {
	return &Bridge{
		logger: logwrap.New(discard.Discard()),
		client: c,
		gw:     gw,
		prefix: prefix,
		qos:    qos,
		sets:   make(chan setCommand, SetQueueSize),
		wg:     &sync.WaitGroup{},
	}
}

// Bridge publishes the numbers of a gateway to MQTT using Home Assistant discovery, and accepts set commands.
type Bridge struct {
	logger logwrap.Logger
	client Client
	gw     Gateway
	prefix string
	qos    byte

	sets   chan setCommand
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func (b *Bridge) WithLogWrapLogger(l logwrap.Logger) {
	b.logger = l
}

func (b *Bridge) deviceID() string {
	return b.gw.Self().Identifier().String()
}

// Start announces every number, publishes its current state and subscribes to its set topic. Gateway events are
// published until Stop is called.
func (b *Bridge) Start(pctx context.Context) error {
	ctx, end := b.logger.Segment(pctx, "Starting MQTT bridge.", logwrap.Datum("Prefix", b.prefix))
	defer end()

	if err := b.publish(StatusTopic(b.prefix, b.deviceID()), []byte(PayloadOnline)); err != nil {
		return fmt.Errorf("publishing bridge status: %w", err)
	}

	for _, n := range b.gw.Numbers() {
		if err := b.announce(ctx, n); err != nil {
			return fmt.Errorf("announcing %s: %w", n.Command(), err)
		}
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())

	b.wg.Add(2)
	go b.eventPump()
	go b.setWorker()

	return nil
}

func (b *Bridge) Stop() {
	if b.cancel == nil {
		return
	}

	b.cancel()
	b.wg.Wait()
	b.cancel = nil

	for _, n := range b.gw.Numbers() {
		if err := b.publish(numberTopic(b.prefix, n.UniqueID(), "availability"), []byte(PayloadOffline)); err != nil {
			b.logger.Warn(context.Background(), "Failed to publish number availability.", logwrap.Err(err), logwrap.Datum("UniqueID", n.UniqueID()))
		}
	}

	if err := b.publish(StatusTopic(b.prefix, b.deviceID()), []byte(PayloadOffline)); err != nil {
		b.logger.Warn(context.Background(), "Failed to publish bridge status.", logwrap.Err(err))
	}
}

func (b *Bridge) announce(ctx context.Context, n *number.Implementation) error {
	payload, err := json.Marshal(b.discovery(ctx, n))
	if err != nil {
		return err
	}

	if err := b.publish(numberTopic(b.prefix, n.UniqueID(), "config"), payload); err != nil {
		return err
	}

	command := n.Command()
	if err := b.client.Subscribe(numberTopic(b.prefix, n.UniqueID(), "set"), b.qos, func(_ string, payload []byte) {
		b.receiveSet(command, payload)
	}); err != nil {
		return err
	}

	b.publishState(ctx, n.UniqueID(), n.Status())
	return nil
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

type discoveryAvailability struct {
	Topic string `json:"topic"`
}

type discoveryConfig struct {
	Name               string                  `json:"name"`
	UniqueID           string                  `json:"unique_id"`
	Icon               string                  `json:"icon,omitempty"`
	Min                float64                 `json:"min"`
	Max                float64                 `json:"max"`
	Step               float64                 `json:"step"`
	Mode               string                  `json:"mode"`
	CommandTopic       string                  `json:"command_topic"`
	StateTopic         string                  `json:"state_topic"`
	Availability       []discoveryAvailability `json:"availability"`
	AvailabilityMode   string                  `json:"availability_mode"`
	PayloadAvailable   string                  `json:"payload_available"`
	PayloadUnavailable string                  `json:"payload_not_available"`
	Device             discoveryDevice         `json:"device"`
}

func (b *Bridge) discovery(ctx context.Context, n *number.Implementation) discoveryConfig {
	d := n.Descriptor()
	id := n.UniqueID()

	dev := discoveryDevice{Identifiers: []string{b.deviceID()}}

	if pi := b.gw.ProductInformation(); pi != nil {
		if info, err := pi.Get(ctx); err == nil {
			dev.Name = strings.TrimSpace(info.Manufacturer + " " + info.Name)
			dev.Manufacturer = info.Manufacturer
			dev.Model = info.Name
			dev.SWVersion = info.Version
		}
	}

	return discoveryConfig{
		Name:         d.Name,
		UniqueID:     id,
		Icon:         d.Icon,
		Min:          n.MinValue(),
		Max:          n.MaxValue(),
		Step:         n.Step(),
		Mode:         "slider",
		CommandTopic: numberTopic(b.prefix, id, "set"),
		StateTopic:   numberTopic(b.prefix, id, "state"),
		Availability: []discoveryAvailability{
			{Topic: StatusTopic(b.prefix, b.deviceID())},
			{Topic: numberTopic(b.prefix, id, "availability")},
		},
		AvailabilityMode:   "all",
		PayloadAvailable:   PayloadOnline,
		PayloadUnavailable: PayloadOffline,
		Device:             dev,
	}
}

func (b *Bridge) publishState(ctx context.Context, uniqueID string, st number.State) {
	if st.HasValue {
		if err := b.publish(numberTopic(b.prefix, uniqueID, "state"), []byte(strconv.FormatFloat(st.Value, 'f', -1, 64))); err != nil {
			b.logger.Warn(ctx, "Failed to publish number state.", logwrap.Err(err), logwrap.Datum("UniqueID", uniqueID))
		}
	}

	availability := PayloadOffline
	if st.Available {
		availability = PayloadOnline
	}

	if err := b.publish(numberTopic(b.prefix, uniqueID, "availability"), []byte(availability)); err != nil {
		b.logger.Warn(ctx, "Failed to publish number availability.", logwrap.Err(err), logwrap.Datum("UniqueID", uniqueID))
	}
}

func (b *Bridge) publish(topic string, payload []byte) error {
	return b.client.Publish(topic, b.qos, true, payload)
}

// receiveSet is called by the MQTT client, set commands are queued so the client is never blocked by stepping.
func (b *Bridge) receiveSet(command string, payload []byte) {
	ctx := context.Background()

	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		b.logger.Warn(ctx, "Dropping malformed set command.", logwrap.Err(err), logwrap.Datum("Command", command), logwrap.Datum("Payload", string(payload)))
		return
	}

	select {
	case b.sets <- setCommand{command: command, value: value}:
	default:
		b.logger.Warn(ctx, "Dropping set command, queue full.", logwrap.Datum("Command", command))
	}
}

func (b *Bridge) setWorker() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		case s := <-b.sets:
			ctx, cancel := context.WithTimeout(b.ctx, SetTimeout)
			if err := b.gw.SetValue(ctx, s.command, s.value); err != nil {
				b.logger.Warn(ctx, "Failed to set value.", logwrap.Err(err), logwrap.Datum("Command", s.command), logwrap.Datum("Value", s.value))
			}
			cancel()
		}
	}
}

func (b *Bridge) eventPump() {
	defer b.wg.Done()

	for {
		e, err := b.gw.ReadEvent(b.ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				b.logger.Error(b.ctx, "Failed to read event from gateway.", logwrap.Err(err))
			}
			return
		}

		switch e := e.(type) {
		case number.Update:
			b.publishState(b.ctx, e.UniqueID, e.State)
		}
	}
}
