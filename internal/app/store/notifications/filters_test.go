package notificationstore

import (
	"reflect"
	"testing"

	"github.com/dalemusser/mukhalis/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestVisibleTo_Shape(t *testing.T) {
	uid := primitive.NewObjectID()
	got := visibleTo(uid, models.RoleCompany)

	want := bson.M{
		"$or": bson.A{
			bson.M{"target_audience": "individual", "user_id": uid},
			bson.M{"target_audience": "all"},
			bson.M{"target_audience": "roles", "target_roles": models.RoleCompany},
		},
		"hidden_by": bson.M{"$ne": uid},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("visibleTo =\n%v\nwant\n%v", got, want)
	}
}

func TestReadState_Unread(t *testing.T) {
	uid := primitive.NewObjectID()
	got := readState(uid, false)

	want := bson.M{
		"$or": bson.A{
			bson.M{"target_audience": "individual", "is_read": false},
			bson.M{"$and": bson.A{
				bson.M{"target_audience": bson.M{"$ne": "individual"}},
				bson.M{"read_by": bson.M{"$ne": uid}},
			}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readState(false) =\n%v\nwant\n%v", got, want)
	}
}

func TestReadState_Read(t *testing.T) {
	uid := primitive.NewObjectID()
	got := readState(uid, true)

	want := bson.M{
		"$or": bson.A{
			bson.M{"target_audience": "individual", "is_read": true},
			bson.M{"$and": bson.A{
				bson.M{"target_audience": bson.M{"$ne": "individual"}},
				bson.M{"read_by": uid},
			}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readState(true) =\n%v\nwant\n%v", got, want)
	}
}
