package bonus

var (
	_ Handler = DailyLoginHandler{}
	_ Handler = FlashHandler{}
	_ Handler = TieredReferralHandler{}
	_ Handler = BirthdayHandler{}
	_ Handler = SeasonalHandler{}
)

// NewDefaultRegistry builds a Registry with the five bonus types spec §4.10
// names already registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(DailyLoginHandler{})
	r.Register(FlashHandler{})
	r.Register(TieredReferralHandler{})
	r.Register(BirthdayHandler{})
	r.Register(SeasonalHandler{})
	return r
}
