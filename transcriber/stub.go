package transcriber

// Stub accepts audio and never recognizes anything.
type Stub struct{}

func NewStub() *Stub { return &Stub{} }

func (*Stub) Name() string              { return "stub" }
func (*Stub) Initialize([]string) error { return nil }
func (*Stub) Start(PhraseFunc) error    { return nil }
func (*Stub) Feed([]byte)               {}
func (*Stub) Stop()                     {}
