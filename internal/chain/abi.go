package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract method names.
const (
	MethodSubmitReport = "submitReport"
	MethodReportCount  = "reportCount"
	MethodGetReport    = "getReport"
)

// ReportRegistryABI is the interface of the deployed report contract. Only the
// three entry points the relay uses are listed.
const ReportRegistryABI = `[
  {
    "type": "function",
    "name": "submitReport",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "citizenId", "type": "uint256"},
      {"name": "nameHash", "type": "bytes32"},
      {"name": "encryptedNameIPFS", "type": "string"},
      {"name": "currentLocation", "type": "string"},
      {"name": "crimeLocation", "type": "string"},
      {"name": "evidenceURIs", "type": "string[]"},
      {"name": "crimeTime", "type": "uint256"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "reportCount",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getReport",
    "stateMutability": "view",
    "inputs": [{"name": "reportId", "type": "uint256"}],
    "outputs": [
      {"name": "citizenId", "type": "uint256"},
      {"name": "nameHash", "type": "bytes32"},
      {"name": "encryptedNameIPFS", "type": "string"},
      {"name": "currentLocation", "type": "string"},
      {"name": "crimeLocation", "type": "string"},
      {"name": "evidenceURIs", "type": "string[]"},
      {"name": "crimeTime", "type": "uint256"},
      {"name": "status", "type": "uint8"},
      {"name": "submitterAddress", "type": "address"}
    ]
  }
]`

var (
	parsedABI     abi.ABI
	parsedABIErr  error
	parsedABIOnce sync.Once
)

// ParsedABI returns the parsed contract ABI.
func ParsedABI() (abi.ABI, error) {
	parsedABIOnce.Do(func() {
		parsedABI, parsedABIErr = abi.JSON(strings.NewReader(ReportRegistryABI))
	})
	return parsedABI, parsedABIErr
}
