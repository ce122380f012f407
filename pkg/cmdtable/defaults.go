package cmdtable

// Well-known mnemonics used by the driver.
const (
	// Ping is sent as keepalive when the link has been idle.
	Ping = "PING"
	// AllStatus carries the packed status word.
	AllStatus = "ALL_STATUS"
)

// PingValue is the value carried by keepalive commands.
const PingValue = 8888

// DefaultCommands is the command table of the temperature bench firmware.
var DefaultCommands = []CommandDescriptor{
	{Mnemonic: "RTD1", Code: 101, Kind: Int32},
	{Mnemonic: "RTD2", Code: 102, Kind: Int32},
	{Mnemonic: "RTD3", Code: 103, Kind: Int32},
	{Mnemonic: "RTD4", Code: 104, Kind: Int32},
	{Mnemonic: "FAULT_RTD1", Code: 111, Kind: Int32},
	{Mnemonic: "FAULT_RTD2", Code: 112, Kind: Int32},
	{Mnemonic: "FAULT_RTD3", Code: 113, Kind: Int32},
	{Mnemonic: "FAULT_RTD4", Code: 114, Kind: Int32},
	{Mnemonic: "ADC1", Code: 121, Kind: Int32},
	{Mnemonic: "ADC2", Code: 122, Kind: Int32},
	{Mnemonic: "ADC3", Code: 123, Kind: Int32},
	{Mnemonic: "ADC4", Code: 124, Kind: Int32},
	{Mnemonic: AllStatus, Code: 200, Kind: Int32},
	{Mnemonic: Ping, Code: 250, Kind: Int32},
}

// Default builds a Registry from DefaultCommands.
func Default() *Registry {
	return MustNewRegistry(DefaultCommands...)
}
