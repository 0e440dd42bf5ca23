package pivot

import "github.com/de-tools/pivot-reports/pkg/models/domain"

const unknownAccount = "unknown"

type AccountPartition struct {
	AccountID string
	Records   []domain.Record
}

// PartitionByAccount splits records by account_id.
// Without requested ids every account found gets a partition, in first seen order.
// With requested ids each id gets exactly one partition, in the given order, even when empty.
func PartitionByAccount(records []domain.Record, requestedIDs []string) []AccountPartition {
	if len(requestedIDs) == 0 {
		index := make(map[string]int)
		partitions := make([]AccountPartition, 0)
		for _, record := range records {
			id := record["account_id"]
			if id == "" {
				id = unknownAccount
			}
			i, ok := index[id]
			if !ok {
				i = len(partitions)
				index[id] = i
				partitions = append(partitions, AccountPartition{AccountID: id})
			}
			partitions[i].Records = append(partitions[i].Records, record)
		}
		return partitions
	}

	partitions := make([]AccountPartition, 0, len(requestedIDs))
	for _, id := range requestedIDs {
		matched := make([]domain.Record, 0)
		for _, record := range records {
			if record["account_id"] == id {
				matched = append(matched, record)
			}
		}
		partitions = append(partitions, AccountPartition{AccountID: id, Records: matched})
	}
	return partitions
}
