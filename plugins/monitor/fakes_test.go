package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/pinballmap"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Storage and Registry
type memStore struct {
	mu       sync.Mutex
	channels map[string]*ChannelConfig
	targets  []*MonitoringTarget
	seen     map[string]map[int64]int
	nextID   uint

	markCalls [][]int64
	pollCalls int

	// markErrors are returned by the next MarkSubmissionsSeen calls, one per call
	markErrors []error
}

func newMemStore() *memStore {
	return &memStore{
		channels: make(map[string]*ChannelConfig),
		seen:     make(map[string]map[int64]int),
	}
}

func (s *memStore) addChannel(config ChannelConfig) *ChannelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	if config.PollRateMinutes == 0 {
		config.PollRateMinutes = defaultPollRateMinutes
	}
	if config.NotificationTypes == "" {
		config.NotificationTypes = NotificationMachines
	}
	s.channels[config.ChannelID] = &config
	return &config
}

func (s *memStore) addRawTarget(target MonitoringTarget) *MonitoringTarget {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	target.ID = s.nextID
	target.CreatedAt = testNow.Add(time.Duration(s.nextID) * time.Second)
	s.targets = append(s.targets, &target)
	return &target
}

func (s *memStore) channel(channelID string) ChannelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.channels[channelID]
}

func (s *memStore) seenCount(channelID string, submissionID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[channelID][submissionID]
}

func (s *memStore) ActiveChannels() ([]ChannelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var channels []ChannelConfig
	for _, channel := range s.channels {
		if !channel.IsActive {
			continue
		}
		for _, target := range s.targets {
			if target.ChannelID == channel.ChannelID {
				channels = append(channels, *channel)
				break
			}
		}
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].ChannelID < channels[j].ChannelID })
	return channels, nil
}

func (s *memStore) MonitoringTargets(channelID string) ([]MonitoringTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var targets []MonitoringTarget
	for _, target := range s.targets {
		if target.ChannelID == channelID {
			targets = append(targets, *target)
		}
	}
	return targets, nil
}

func (s *memStore) UpdateChannelLastPollTime(channelID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pollCalls++
	channel, ok := s.channels[channelID]
	if !ok {
		return ErrChannelNotConfigured
	}
	channel.LastPollAt = &at
	return nil
}

func (s *memStore) UpdateTargetLastCheckedTime(targetID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, target := range s.targets {
		if target.ID == targetID {
			target.LastCheckedAt = &at
			return nil
		}
	}
	return fmt.Errorf("target %d not found", targetID)
}

func (s *memStore) FilterNewSubmissions(channelID string, submissions []pinballmap.Submission) ([]pinballmap.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []pinballmap.Submission
	for _, submission := range submissions {
		if s.seen[channelID][submission.ID] == 0 {
			fresh = append(fresh, submission)
		}
	}
	return fresh, nil
}

func (s *memStore) MarkSubmissionsSeen(channelID string, submissionIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markCalls = append(s.markCalls, append([]int64(nil), submissionIDs...))
	if len(s.markErrors) > 0 {
		err := s.markErrors[0]
		s.markErrors = s.markErrors[1:]
		if err != nil {
			return err
		}
	}
	if s.seen[channelID] == nil {
		s.seen[channelID] = make(map[int64]int)
	}
	for _, id := range submissionIDs {
		if s.seen[channelID][id] == 0 {
			s.seen[channelID][id] = 1
		}
	}
	return nil
}

func (s *memStore) Channel(channelID string) (*ChannelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.channels[channelID]
	if !ok {
		return nil, ErrChannelNotConfigured
	}
	copied := *channel
	return &copied, nil
}

func (s *memStore) EnsureChannel(guildID, channelID string) (*ChannelConfig, error) {
	if channel, err := s.Channel(channelID); err == nil {
		return channel, nil
	}
	return s.addChannel(ChannelConfig{ChannelID: channelID, GuildID: guildID}), nil
}

func (s *memStore) AddTarget(target *MonitoringTarget) error {
	if _, err := target.Watch(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, existing := range s.targets {
		if existing.ChannelID == target.ChannelID && targetKey(existing) == targetKey(target) {
			s.mu.Unlock()
			return ErrTargetExists
		}
	}
	if channel, ok := s.channels[target.ChannelID]; ok {
		channel.IsActive = true
	}
	s.mu.Unlock()

	stored := s.addRawTarget(*target)
	target.ID = stored.ID
	return nil
}

func targetKey(target *MonitoringTarget) string {
	if target.LocationID != nil {
		return fmt.Sprintf("location:%d", *target.LocationID)
	}
	return fmt.Sprintf("area:%v:%v:%v", *target.Latitude, *target.Longitude, *target.RadiusMiles)
}

func (s *memStore) RemoveTarget(channelID string, index int) (*MonitoringTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var position int
	for i, target := range s.targets {
		if target.ChannelID != channelID {
			continue
		}
		position++
		if position == index {
			s.targets = append(s.targets[:i], s.targets[i+1:]...)
			return target, nil
		}
	}
	return nil, ErrInvalidTargetIndex
}

func (s *memStore) targetAt(channelID string, index int) (*MonitoringTarget, error) {
	var position int
	for _, target := range s.targets {
		if target.ChannelID != channelID {
			continue
		}
		position++
		if position == index {
			return target, nil
		}
	}
	return nil, ErrInvalidTargetIndex
}

func (s *memStore) SetChannelPollRate(channelID string, minutes int) error {
	if minutes < 1 {
		return ErrInvalidPollRate
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.channels[channelID]
	if !ok {
		return ErrChannelNotConfigured
	}
	channel.PollRateMinutes = minutes
	return nil
}

func (s *memStore) SetTargetPollRate(channelID string, index int, minutes int) error {
	if minutes < 1 {
		return ErrInvalidPollRate
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.targetAt(channelID, index)
	if err != nil {
		return err
	}
	target.PollRateMinutes = minutes
	return nil
}

func (s *memStore) SetChannelNotificationTypes(channelID string, types NotificationType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.channels[channelID]
	if !ok {
		return ErrChannelNotConfigured
	}
	channel.NotificationTypes = types
	return nil
}

func (s *memStore) SetTargetNotificationTypes(channelID string, index int, types NotificationType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.targetAt(channelID, index)
	if err != nil {
		return err
	}
	target.NotificationTypes = types
	return nil
}

type fetchCall struct {
	LocationID int
	Latitude   float64
	Longitude  float64
	Radius     int
	UseMinDate bool
}

// fakeAPI serves canned submissions per location ID or per latitude
type fakeAPI struct {
	mu sync.Mutex

	byLocation  map[int][]pinballmap.Submission
	byLatitude  map[float64][]pinballmap.Submission
	fetchErrors map[int]error
	areaErrors  map[float64]error

	// panicLocation makes fetching that location panic
	panicLocation int

	locations   map[int]pinballmap.Location
	search      map[string]*pinballmap.LocationMatch
	coordinates map[string]*pinballmap.Coordinates

	calls        []fetchCall
	geocodeCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		byLocation:  make(map[int][]pinballmap.Submission),
		byLatitude:  make(map[float64][]pinballmap.Submission),
		fetchErrors: make(map[int]error),
		areaErrors:  make(map[float64]error),
		locations:   make(map[int]pinballmap.Location),
		search:      make(map[string]*pinballmap.LocationMatch),
		coordinates: make(map[string]*pinballmap.Coordinates),
	}
}

func (a *fakeAPI) FetchSubmissionsForLocation(_ context.Context, locationID int, useMinDate bool) ([]pinballmap.Submission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, fetchCall{LocationID: locationID, UseMinDate: useMinDate})
	if locationID != 0 && locationID == a.panicLocation {
		panic("upstream exploded")
	}
	if err := a.fetchErrors[locationID]; err != nil {
		return nil, err
	}
	return append([]pinballmap.Submission(nil), a.byLocation[locationID]...), nil
}

func (a *fakeAPI) FetchSubmissionsForCoordinates(
	_ context.Context,
	latitude, longitude float64,
	radiusMiles int,
	useMinDate bool,
) ([]pinballmap.Submission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, fetchCall{Latitude: latitude, Longitude: longitude, Radius: radiusMiles, UseMinDate: useMinDate})
	if err := a.areaErrors[latitude]; err != nil {
		return nil, err
	}
	return append([]pinballmap.Submission(nil), a.byLatitude[latitude]...), nil
}

func (a *fakeAPI) Location(_ context.Context, locationID int) (*pinballmap.Location, error) {
	location, ok := a.locations[locationID]
	if !ok {
		return nil, pinballmap.ErrNotFound
	}
	return &location, nil
}

func (a *fakeAPI) SearchLocationByName(_ context.Context, name string) (*pinballmap.LocationMatch, error) {
	match, ok := a.search[name]
	if !ok {
		return &pinballmap.LocationMatch{Status: pinballmap.MatchNone}, nil
	}
	return match, nil
}

func (a *fakeAPI) GeocodeCityName(_ context.Context, name string) (*pinballmap.Coordinates, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.geocodeCalls++
	coordinates, ok := a.coordinates[name]
	if !ok {
		return nil, pinballmap.ErrNotFound
	}
	return coordinates, nil
}

func (a *fakeAPI) fetchCalls() []fetchCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]fetchCall(nil), a.calls...)
}

// fakeNotifier records everything sent to it
type fakeNotifier struct {
	mu sync.Mutex

	unresolvable map[string]bool
	panicChannel string
	// deliverLimit caps how many submissions one PostSubmissions call delivers, negative is unlimited
	deliverLimit int
	postErr      error

	messages []string
	posts    [][]pinballmap.Submission
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		unresolvable: make(map[string]bool),
		deliverLimit: -1,
	}
}

func (n *fakeNotifier) ResolveChannel(_ context.Context, channelID string) error {
	if channelID == n.panicChannel {
		panic("resolving " + channelID)
	}
	if n.unresolvable[channelID] {
		return ErrChannelNotFound
	}
	return nil
}

func (n *fakeNotifier) PostSubmissions(
	_ context.Context,
	_ string,
	submissions []pinballmap.Submission,
	_ ChannelConfig,
) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delivered := len(submissions)
	if n.deliverLimit >= 0 && n.deliverLimit < delivered {
		delivered = n.deliverLimit
	}
	n.posts = append(n.posts, append([]pinballmap.Submission(nil), submissions[:delivered]...))

	if delivered < len(submissions) {
		return delivered, n.postErr
	}
	return delivered, nil
}

func (n *fakeNotifier) LogAndSend(_ context.Context, _ string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.messages = append(n.messages, text)
	return nil
}

func (n *fakeNotifier) sentMessages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func (n *fakeNotifier) postedIDs() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	var ids []int64
	for _, post := range n.posts {
		for _, submission := range post {
			ids = append(ids, submission.ID)
		}
	}
	return ids
}

type testEnv struct {
	plugin   *Plugin
	store    *memStore
	api      *fakeAPI
	notifier *fakeNotifier
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newMemStore(),
		api:      newFakeAPI(),
		notifier: newFakeNotifier(),
	}
	env.plugin = New(zap.NewNop(), env.store, env.store, env.api, env.notifier)
	env.plugin.now = func() time.Time { return testNow }
	return env
}

func submission(id int64, submissionType string, createdAt time.Time) pinballmap.Submission {
	return pinballmap.Submission{
		ID:             id,
		SubmissionType: submissionType,
		LocationID:     874,
		LocationName:   "Ground Kontrol",
		MachineName:    fmt.Sprintf("Machine %d", id),
		CreatedAt:      createdAt,
	}
}

func locationTarget(channelID string, locationID int) MonitoringTarget {
	return *newTarget(channelID, LocationTarget{LocationID: locationID}, 0, "")
}

func areaTarget(channelID string, latitude, longitude float64, radius int) MonitoringTarget {
	return *newTarget(channelID, GeographicTarget{Latitude: latitude, Longitude: longitude, RadiusMiles: radius}, 0, "")
}
