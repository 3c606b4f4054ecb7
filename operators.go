package mongofam

// Query operators commonly used in findAndModify filters.
// https://www.mongodb.com/docs/manual/reference/operator/query/
const (
	// $eq matches values that are equal to a specified value.
	Eq = "$eq"

	// $ne matches all values that are not equal to a specified value.
	Ne = "$ne"

	// $gt matches values that are greater than a specified value.
	Gt = "$gt"

	// $gte matches values that are greater than or equal to a specified value.
	Gte = "$gte"

	// $lt matches values that are less than a specified value.
	Lt = "$lt"

	// $lte matches values that are less than or equal to a specified value.
	Lte = "$lte"

	// $in matches any of the values specified in an array.
	In = "$in"

	// $nin matches none of the values specified in an array.
	Nin = "$nin"

	// $exists matches documents that have the specified field.
	Exists = "$exists"

	// $and joins query clauses with a logical AND.
	And = "$and"

	// $or joins query clauses with a logical OR.
	Or = "$or"
)

// Field update operators.
// https://www.mongodb.com/docs/manual/reference/operator/update-field/
const (
	// $currentDate sets the field to the current date, either as a Date or a Timestamp.
	CurrentDate = "$currentDate"

	// $inc increments the field by the given amount.
	Inc = "$inc"

	// $min updates the field only if the given value is less than the existing one.
	Min = "$min"

	// $max updates the field only if the given value is greater than the existing one.
	Max = "$max"

	// $mul multiplies the field by the given number.
	Mul = "$mul"

	// $rename renames the field.
	Rename = "$rename"

	// $set sets the field value.
	Set = "$set"

	// $setOnInsert sets the field only when an upsert inserts a new document.
	SetOnInsert = "$setOnInsert"

	// $unset removes the field.
	Unset = "$unset"
)

// Array update operators.
// https://www.mongodb.com/docs/manual/reference/operator/update-array/
const (
	// $addToSet adds elements to an array only if they do not already exist in the set.
	AddToSet = "$addToSet"

	// $pop removes the first (-1) or the last (1) item of an array.
	Pop = "$pop"

	// $pull removes all array elements that match a specified query.
	Pull = "$pull"

	// $pullAll removes all matching values from an array.
	PullAll = "$pullAll"

	// $push adds an item to an array.
	Push = "$push"

	// $each modifies $push and $addToSet to append multiple items.
	Each = "$each"
)
