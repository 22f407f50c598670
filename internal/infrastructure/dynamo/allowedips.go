package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// AllowedIPRepo backs the global IP allow-list consulted by the login
// policy when a user's own list does not match.
type AllowedIPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAllowedIPRepo(client *dynamodb.Client, tableName string) *AllowedIPRepo {
	return &AllowedIPRepo{client: client, tableName: tableName}
}

type allowedIPItem struct {
	IP     string `dynamodbav:"ip"`
	Enable bool   `dynamodbav:"enable"`
}

// IsAllowed reports whether ip is present and enabled in the global list.
// Lookup failures deny; the IP gate fails closed.
func (r *AllowedIPRepo) IsAllowed(ctx context.Context, ip string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("ip", ip),
	})
	if err != nil {
		return false, err
	}
	if out.Item == nil {
		return false, nil
	}
	var item allowedIPItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return false, err
	}
	return item.Enable, nil
}
